package models

import "time"

// SupertypeEnergy is the supertype the card source reports for energy cards.
const SupertypeEnergy = "Energy"

type Ability struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type Attack struct {
	Name   string   `json:"name"`
	Cost   []string `json:"cost"`
	Damage string   `json:"damage"` // may carry a suffix such as "+" or "×2"
	Text   string   `json:"text"`
}

// TypeModifier is a weakness or resistance entry, e.g. {Water ×2}.
type TypeModifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Card is a catalog record keyed by the card source id.
// A nil Abilities/Attacks/Weaknesses/Resistances means the source sent none,
// which is not the same as a present empty list.
type Card struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Supertype   string          `json:"supertype"`
	Subtypes    []string        `json:"subtypes"`
	HP          *string         `json:"hp"`
	Types       []string        `json:"types"`
	Abilities   *[]Ability      `json:"abilities"`
	Attacks     *[]Attack       `json:"attacks"`
	Weaknesses  *[]TypeModifier `json:"weaknesses"`
	Resistances *[]TypeModifier `json:"resistances"`
	RetreatCost []string        `json:"retreatCost"`
	Rules       []string        `json:"rules"`
	ImageSmall  string          `json:"imageSmall"`
	ImageLarge  string          `json:"imageLarge"`
	SetID       string          `json:"setId"`
	SetName     string          `json:"setName"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"` // nil until the first update
}

// IsBasicEnergy reports whether the card is exempt from the per-card copy limit.
func IsBasicEnergy(supertype string, subtypes []string) bool {
	if supertype != SupertypeEnergy {
		return false
	}
	for _, s := range subtypes {
		if s == "Basic" {
			return true
		}
	}
	return false
}

func (c *Card) IsBasicEnergy() bool {
	return IsBasicEnergy(c.Supertype, c.Subtypes)
}

// ScoredCard is a similarity search hit.
type ScoredCard struct {
	Card       *Card   `json:"card"`
	Similarity float64 `json:"similarity"`
}
