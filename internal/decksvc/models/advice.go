package models

type Advice struct {
	Answer        string   `json:"answer"`
	RelevantCards []string `json:"relevantCards"`
}
