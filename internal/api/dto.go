package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/stats"
)

// decimalAmount bridges core.Money and the wire format. The server renders
// decimal fields as strings ("1234.56") but aggregates occasionally arrive as
// bare numbers, so unmarshalling accepts both.
type decimalAmount struct {
	core.Money
}

func (d decimalAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal())
}

func (d *decimalAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return d.parse(n.String())
	}
	return fmt.Errorf("amount %s is neither string nor number", data)
}

func (d *decimalAmount) parse(s string) error {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		// Aggregate balances may be negative even though raw amounts never are.
		neg = true
		s = s[1:]
	}
	m, err := core.ParseMoney(s)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", s, err)
	}
	if neg {
		m.Cents = -m.Cents
	}
	d.Money = m
	return nil
}

// apiDate carries the server's plain "2006-01-02" date format.
type apiDate struct {
	core.Date
}

const dateLayout = "2006-01-02"

func (d apiDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *apiDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Date = core.Date{Time: t}
	return nil
}

type transactionDTO struct {
	ID           int64         `json:"id,omitempty"`
	Amount       decimalAmount `json:"amount"`
	Type         core.Flow     `json:"type"`
	Category     int64         `json:"category"`
	CategoryName string        `json:"category_name,omitempty"`
	Date         apiDate       `json:"date"`
	Description  string        `json:"description"`
	CreatedAt    string        `json:"created_at,omitempty"`
}

func (dto transactionDTO) toDomain() core.Transaction {
	created, _ := time.Parse(time.RFC3339, dto.CreatedAt)
	return core.Transaction{
		ID:           dto.ID,
		Flow:         dto.Type,
		Amount:       dto.Amount.Money,
		CategoryID:   dto.Category,
		CategoryName: dto.CategoryName,
		Date:         dto.Date.Date,
		Description:  dto.Description,
		CreatedAt:    created,
	}
}

func transactionToDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          tx.ID,
		Amount:      decimalAmount{tx.Amount},
		Type:        tx.Flow,
		Category:    tx.CategoryID,
		Date:        apiDate{tx.Date},
		Description: tx.Description,
	}
}

type categoryDTO struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Type core.Flow `json:"type"`
}

func (dto categoryDTO) toDomain() core.Category {
	return core.Category{ID: dto.ID, Name: dto.Name, Flow: dto.Type}
}

type goalDTO struct {
	ID           int64         `json:"id,omitempty"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	TargetAmount decimalAmount `json:"target_amount"`
	CurrentSaved decimalAmount `json:"current_saved"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    string        `json:"created_at,omitempty"`
}

func (dto goalDTO) toDomain() core.SavingGoal {
	created, _ := time.Parse(time.RFC3339, dto.CreatedAt)
	return core.SavingGoal{
		ID:           dto.ID,
		Title:        dto.Title,
		Description:  dto.Description,
		TargetAmount: dto.TargetAmount.Money,
		CurrentSaved: dto.CurrentSaved.Money,
		IsActive:     dto.IsActive,
		CreatedAt:    created,
	}
}

type pieDTO struct {
	Name  string        `json:"name"`
	Value decimalAmount `json:"value"`
}

type chartPointDTO struct {
	Name    string        `json:"name"`
	Income  decimalAmount `json:"income"`
	Expense decimalAmount `json:"expense"`
}

type statsDTO struct {
	Summary struct {
		TotalIncome  decimalAmount `json:"total_income"`
		TotalExpense decimalAmount `json:"total_expense"`
		Balance      decimalAmount `json:"balance"`
	} `json:"summary"`
	ChartData      []chartPointDTO `json:"chart_data"`
	IncomePieData  []pieDTO        `json:"income_pie_data"`
	ExpensePieData []pieDTO        `json:"expense_pie_data"`
}

// Stats is the server-computed mirror of the local derivation functions.
type Stats struct {
	Summary    stats.Summary
	Chart      []stats.ChartPoint
	IncomePie  []stats.PieSlice
	ExpensePie []stats.PieSlice
}

func (dto statsDTO) toDomain() Stats {
	out := Stats{
		Summary: stats.Summary{
			TotalIncome:  dto.Summary.TotalIncome.Money,
			TotalExpense: dto.Summary.TotalExpense.Money,
			Balance:      dto.Summary.Balance.Money,
		},
	}
	for _, p := range dto.ChartData {
		out.Chart = append(out.Chart, stats.ChartPoint{
			Label:   p.Name,
			Income:  p.Income.Money,
			Expense: p.Expense.Money,
		})
	}
	out.IncomePie = pieSlices(dto.IncomePieData)
	out.ExpensePie = pieSlices(dto.ExpensePieData)
	return out
}

func pieSlices(dtos []pieDTO) []stats.PieSlice {
	slices := make([]stats.PieSlice, 0, len(dtos))
	for _, d := range dtos {
		slices = append(slices, stats.PieSlice{CategoryName: d.Name, Value: d.Value.Money})
	}
	return slices
}

// User is the registration result.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// decodeList accepts both a bare JSON array and DRF's paginated
// {"results": [...]} envelope.
func decodeList[T any](data []byte) ([]T, error) {
	var list []T
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return envelope.Results, nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
