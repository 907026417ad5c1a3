package service

import (
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
)

// CardText renders the description a card is embedded from. Sections the card
// does not have are left out entirely.
func CardText(c *models.Card) string {
	var head strings.Builder
	head.WriteString(c.Name)
	head.WriteString(" is a ")
	head.WriteString(c.Supertype)
	if len(c.Subtypes) > 0 {
		head.WriteString(" (" + strings.Join(c.Subtypes, ", ") + ")")
	}
	if len(c.Types) > 0 {
		head.WriteString(" of type " + strings.Join(c.Types, "/"))
	}
	if c.HP != nil && *c.HP != "" {
		head.WriteString(" with " + *c.HP + " HP")
	}

	lines := []string{head.String()}

	if c.Abilities != nil {
		for _, a := range *c.Abilities {
			lines = append(lines, `Ability "`+a.Name+`": `+a.Text)
		}
	}

	if c.Attacks != nil {
		for _, a := range *c.Attacks {
			line := `Attack "` + a.Name + `"`
			if a.Damage != "" {
				line += " does " + a.Damage + " damage"
			}
			if a.Text != "" {
				line += ": " + a.Text
			}
			lines = append(lines, line)
		}
	}

	if len(c.Rules) > 0 {
		lines = append(lines, "Rules: "+strings.Join(c.Rules, " "))
	}

	return strings.Join(lines, "\n")
}
