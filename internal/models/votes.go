package models

import "slices"

// Direction - значение голоса, 0 означает отсутствие голоса
type Direction int

const (
	Downvote Direction = -1
	NoVote   Direction = 0
	Upvote   Direction = 1
)

func (d Direction) Valid() bool {
	return d >= Downvote && d <= Upvote
}

func (d Direction) String() string {
	switch d {
	case Upvote:
		return "up"
	case Downvote:
		return "down"
	default:
		return "none"
	}
}

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up", "upvote", "1":
		return Upvote, true
	case "down", "downvote", "-1":
		return Downvote, true
	case "none", "0", "":
		return NoVote, true
	}
	return NoVote, false
}

// Votes - голоса за один объект. Каждый голосующий находится
// не более чем в одном из множеств.
type Votes struct {
	Upvotes   []string `json:"upvotes"`
	Downvotes []string `json:"downvotes"`
}

func (v *Votes) Karma() int {
	if v == nil {
		return 0
	}
	return len(v.Upvotes) - len(v.Downvotes)
}

// UserVote возвращает голос пользователя voter
func (v *Votes) UserVote(voter string) Direction {
	if v == nil || voter == "" {
		return NoVote
	}
	if slices.Contains(v.Upvotes, voter) {
		return Upvote
	}
	if slices.Contains(v.Downvotes, voter) {
		return Downvote
	}
	return NoVote
}

// Set устанавливает голос voter, удаляя его предыдущий голос
func (v *Votes) Set(voter string, d Direction) {
	v.Upvotes = slices.DeleteFunc(v.Upvotes, func(s string) bool { return s == voter })
	v.Downvotes = slices.DeleteFunc(v.Downvotes, func(s string) bool { return s == voter })
	switch d {
	case Upvote:
		v.Upvotes = append(v.Upvotes, voter)
	case Downvote:
		v.Downvotes = append(v.Downvotes, voter)
	}
}

func (v *Votes) Clone() *Votes {
	if v == nil {
		return nil
	}
	return &Votes{Upvotes: slices.Clone(v.Upvotes), Downvotes: slices.Clone(v.Downvotes)}
}
