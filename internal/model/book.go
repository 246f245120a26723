package model

import "time"

// BookStatus は本の読書状態を表す。
type BookStatus string

const (
	// BookStatusReading は読書中。
	BookStatusReading BookStatus = "reading"
	// BookStatusFinished は読了。
	BookStatusFinished BookStatus = "finished"
	// BookStatusWantToRead は積読（読みたい）。
	BookStatusWantToRead BookStatus = "want-to-read"
)

// Valid は定義済みの状態かどうかを返す。
func (s BookStatus) Valid() bool {
	switch s {
	case BookStatusReading, BookStatusFinished, BookStatusWantToRead:
		return true
	default:
		return false
	}
}

// Book はユーザーの本棚に登録された本を表す。
type Book struct {
	ID        string
	UserID    string
	Title     string
	Author    string
	Status    BookStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
