package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Flow = "IN"
	Expense Flow = "EX"
)

type (
	// Flow is the direction of a transaction or category.
	Flow string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID           int64
		Flow         Flow
		Amount       Money
		CategoryID   int64
		CategoryName string
		Date         Date
		Description  string
		CreatedAt    time.Time
	}

	Category struct {
		ID   int64
		Name string
		Flow Flow
	}

	SavingGoal struct {
		ID           int64
		Title        string
		Description  string
		TargetAmount Money
		CurrentSaved Money
		IsActive     bool
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidFlow      = errors.New("invalid flow")
	ErrInvalidGoal      = errors.New("invalid goal")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyTitle       = errors.New("empty title")
)

func (f Flow) Validate() error {
	switch f {
	case Income, Expense:
		return nil
	}
	return ErrInvalidFlow
}

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Flow.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.CategoryID == 0 {
		return errors.New("missing category")
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

func (g SavingGoal) Validate() error {
	if len(strings.TrimSpace(g.Title)) == 0 {
		return ErrEmptyTitle
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidGoal
	}
	if g.CurrentSaved.Cents < 0 {
		return ErrInvalidGoal
	}
	return nil
}
