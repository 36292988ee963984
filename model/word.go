package model

// Word is one forbidden word. Escalate marks the higher-severity tier.
type Word struct {
	Word     string `db:"word"`
	Escalate bool   `db:"escalate"`
}

// Classification is the policy verdict for a username.
type Classification struct {
	ShouldAct bool
	Escalate  bool
	Word      string // matched word, empty when clean
}
