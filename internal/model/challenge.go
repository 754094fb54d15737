package model

import (
	"time"

	"gorm.io/gorm"
)

// Challenge is an authored puzzle. flags and files are stored as JSON arrays;
// flag matching is case-sensitive exact match against the set.
// swagger:model Challenge
type Challenge struct {
	BaseModel
	Title               string      `gorm:"size:200;not null" json:"title"`
	Category            string      `gorm:"size:100" json:"category"`
	Points              int         `gorm:"default:0" json:"points"`
	Flags               StringArray `gorm:"type:json" json:"flags"`
	Description         string      `gorm:"type:text" json:"description"`
	Files               StringArray `gorm:"type:json" json:"files"`
	Hint                *string     `gorm:"type:text" json:"hint,omitempty"`
	HintCost            *int        `json:"hintCost,omitempty"`
	Published           bool        `gorm:"default:false;index" json:"published"`
	Archived            bool        `gorm:"default:false" json:"archived"`
	PublishedMessageURL *string     `gorm:"size:255" json:"publishedMessageURL,omitempty"`
	ThreadChannelID     *string     `gorm:"size:32" json:"threadChannelId,omitempty"`
	EditedAt            time.Time   `json:"editedAt"`
	AuthorID            string      `gorm:"size:64;index" json:"authorId"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// HasHint reports whether the hint economy applies: both the text and the
// cost must be set.
func (c *Challenge) HasHint() bool {
	return c.Hint != nil && *c.Hint != "" && c.HintCost != nil
}

// MatchesFlag compares the trimmed candidate against the flag set,
// case-sensitively.
func (c *Challenge) MatchesFlag(candidate string) bool {
	for _, f := range c.Flags {
		if f == candidate {
			return true
		}
	}
	return false
}

func (c *Challenge) BeforeSave(tx *gorm.DB) error {
	if c.EditedAt.IsZero() {
		c.EditedAt = time.Now()
	}
	return nil
}
