package fusion

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/semgraph"
)

// greetingPool is the canned fast-path pool for trivial greetings.
var greetingPool = []string{
	"Hoi! Fijn dat je er bent. Hoe gaat het vandaag met je?",
	"Hallo! Goed dat je even inchecken. Wat houdt je bezig?",
	"Hé, welkom terug. Waar wil je het vandaag over hebben?",
	"Hoi! Ik luister. Vertel maar wat er speelt.",
}

// DrawGreeting picks a greeting from the pool using the injected random
// source; a nil source yields the first entry.
func DrawGreeting(rng *rand.Rand) string {
	if rng == nil {
		return greetingPool[0]
	}
	return greetingPool[rng.IntN(len(greetingPool))]
}

// GreetingPool returns a copy of the canned pool, for tests.
func GreetingPool() []string {
	out := make([]string, len(greetingPool))
	copy(out, greetingPool)
	return out
}

// emotionPhrases maps emotions to the template opener.
var emotionPhrases = map[string]string{
	"verdriet":    "Ik hoor hoeveel verdriet er in je woorden zit.",
	"angst":       "Ik merk dat er veel spanning en angst bij je speelt.",
	"boosheid":    "Ik hoor dat er veel boosheid in je zit, en dat mag er zijn.",
	"eenzaamheid": "Het klinkt alsof je je erg alleen voelt op dit moment.",
	"schaamte":    "Wat je deelt vraagt moed; schaamte maakt praten zwaar.",
	"stress":      "Ik hoor dat de druk je op dit moment veel kost.",
	"wanhoop":     "Ik hoor hoe zwaar en uitzichtloos het nu voor je voelt.",
	"paniek":      "Ik merk dat het je nu even te veel wordt.",
}

// interventionPhrases maps allowed intervention categories to their
// template follow-up sentence.
var interventionPhrases = map[string]string{
	semgraph.InterventionValidation: "Wat je voelt is begrijpelijk en mag er helemaal zijn.",
	semgraph.InterventionReflection: "Wat zou je op dit moment het meest helpen, denk je?",
	semgraph.InterventionSuggestion: "Misschien helpt het om één kleine stap te kiezen die nu haalbaar voelt.",
	semgraph.InterventionGrounding:  "Probeer even rustig adem te halen; je hoeft nu niets te moeten.",
	semgraph.InterventionReferral:   "Het kan helpen om hierover met een hulpverlener te praten; je hoeft dit niet alleen te dragen.",
}

// ComposeTemplate builds the TEMPLATE_ONLY answer from the resolved emotion
// and the allowed-interventions list using fixed phrase templates.
func ComposeTemplate(emotion string, allowed []string) string {
	var parts []string
	if opener, ok := emotionPhrases[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		parts = append(parts, opener)
	} else if emotion != "" {
		parts = append(parts, fmt.Sprintf("Ik hoor dat %s nu een grote rol speelt voor je.", strings.ToLower(emotion)))
	} else {
		parts = append(parts, "Dank je dat je dit met me deelt.")
	}
	// At most two follow-ups keeps the template answer compact.
	for i, iv := range allowed {
		if i >= 2 {
			break
		}
		if phrase, ok := interventionPhrases[iv]; ok {
			parts = append(parts, phrase)
		}
	}
	if len(parts) == 1 {
		parts = append(parts, interventionPhrases[semgraph.InterventionValidation])
	}
	return strings.Join(parts, " ")
}

// escalationScript is the scripted, safety-first referral response.
const escalationScript = "Wat je nu beschrijft klinkt ernstig, en ik wil dat je veilig bent. " +
	"Neem direct contact op met 113 Zelfmoordpreventie (bel 113 of 0800-0113, of chat via 113.nl) " +
	"of bel 112 bij acuut gevaar. Je hoeft dit niet alleen te dragen; er zijn mensen die je nu kunnen helpen."

// EscalationScript returns the fixed referral text for the safety override.
func EscalationScript() string {
	return escalationScript
}
