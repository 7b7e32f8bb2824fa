package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Tactic{},
	&Frame{},
	&Stroke{},
}

// Tactic is the stored header of a tactic. Frames hang off it in order.
type Tactic struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime:false;index:idx_tactic_updated_at"`
	Frames    []Frame   `json:"frames" gorm:"foreignKey:TacticID;references:ID;constraint:OnDelete:CASCADE"`
}

func (*Tactic) TableName() string {
	return "tactics"
}

// Frame is one pose of a tactic. Positions holds the slot list sorted by
// slot id; Ball holds a JSON null when the frame has no ball.
type Frame struct {
	ID         uint           `json:"-" gorm:"primaryKey;autoIncrement"`
	UID        string         `json:"id" gorm:"size:36;not null"`
	TacticID   string         `json:"tacticId" gorm:"size:36;not null;index:idx_frame_tactic_index,priority:1"`
	FrameIndex int            `json:"index" gorm:"not null;index:idx_frame_tactic_index,priority:2"`
	DurationMs int            `json:"durationMs" gorm:"not null"`
	Positions  datatypes.JSON `json:"positions"`
	Ball       datatypes.JSON `json:"ball"`
	Strokes    []Stroke       `json:"strokes" gorm:"foreignKey:FrameID;references:ID;constraint:OnDelete:CASCADE"`
}

func (*Frame) TableName() string {
	return "frames"
}

// Stroke is one annotation on a frame, kept in drawing order by Ordinal.
type Stroke struct {
	ID          uint           `json:"-" gorm:"primaryKey;autoIncrement"`
	UID         string         `json:"id" gorm:"size:36;not null"`
	FrameID     uint           `json:"-" gorm:"not null;index:idx_stroke_frame_ordinal,priority:1"`
	Ordinal     int            `json:"ordinal" gorm:"not null;index:idx_stroke_frame_ordinal,priority:2"`
	Tool        string         `json:"tool" gorm:"size:16;not null"`
	Color       string         `json:"color" gorm:"size:32"`
	StrokeWidth float64        `json:"strokeWidth"`
	Points      datatypes.JSON `json:"points"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"autoCreateTime:false"`
}

func (*Stroke) TableName() string {
	return "strokes"
}
