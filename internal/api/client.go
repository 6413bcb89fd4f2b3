// Package api is the typed client for the finance backend. It speaks the
// server's JSON dialect (snake_case fields, decimal-string amounts) and hands
// every request to the session layer, which owns authentication.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"fintrack/internal/core"
	"fintrack/internal/session"
	"fintrack/internal/stats"
)

type Client struct {
	session *session.Client
}

func NewClient(sess *session.Client) *Client {
	return &Client{session: sess}
}

// Login exchanges credentials for a token pair and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var creds session.Credentials
	if err := c.session.Do(ctx, http.MethodPost, "/auth/jwt/create/", body, &creds); err != nil {
		return err
	}
	if err := c.session.SetCredentials(creds); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// Register creates a new account. Validation failures come back as
// *session.APIError with field-keyed messages.
func (c *Client) Register(ctx context.Context, username, email, password, rePassword string) (User, error) {
	body := map[string]string{
		"username":    username,
		"email":       email,
		"password":    password,
		"re_password": rePassword,
	}
	var user User
	if err := c.session.Do(ctx, http.MethodPost, "/auth/users/", body, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Logout drops the stored credentials. Purely local; the server keeps no
// session state beyond the tokens themselves.
func (c *Client) Logout() error {
	return c.session.ClearCredentials()
}

// Authenticated reports whether a credential pair is stored.
func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// TransactionFilter narrows ListTransactions; zero values mean no filter.
type TransactionFilter struct {
	Month int
	Year  int
}

// ListTransactions returns the user's transactions, newest first (server
// ordering), optionally filtered by month and year.
func (c *Client) ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error) {
	query := url.Values{}
	if filter.Month != 0 {
		query.Set("month", itoa(int64(filter.Month)))
	}
	if filter.Year != 0 {
		query.Set("year", itoa(int64(filter.Year)))
	}
	path := "/transactions/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.session.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[transactionDTO](resp.Body)
	if err != nil {
		return nil, err
	}
	transactions := make([]core.Transaction, 0, len(dtos))
	for _, dto := range dtos {
		transactions = append(transactions, dto.toDomain())
	}
	return transactions, nil
}

func (c *Client) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var dto transactionDTO
	if err := c.session.Do(ctx, http.MethodGet, "/transactions/"+itoa(id)+"/", nil, &dto); err != nil {
		return core.Transaction{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var dto transactionDTO
	if err := c.session.Do(ctx, http.MethodPost, "/transactions/", transactionToDTO(tx), &dto); err != nil {
		return core.Transaction{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var dto transactionDTO
	path := "/transactions/" + itoa(tx.ID) + "/"
	if err := c.session.Do(ctx, http.MethodPut, path, transactionToDTO(tx), &dto); err != nil {
		return core.Transaction{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.session.Do(ctx, http.MethodDelete, "/transactions/"+itoa(id)+"/", nil, nil)
}

// ListCategories returns all categories, each tagged with its flow.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	resp, err := c.session.Request(ctx, http.MethodGet, "/categories/", nil)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[categoryDTO](resp.Body)
	if err != nil {
		return nil, err
	}
	categories := make([]core.Category, 0, len(dtos))
	for _, dto := range dtos {
		categories = append(categories, dto.toDomain())
	}
	return categories, nil
}

// Stats fetches the server-computed aggregates, optionally bounded by an
// inclusive date range.
func (c *Client) Stats(ctx context.Context, from, to *core.Date) (Stats, error) {
	query := url.Values{}
	if from != nil {
		query.Set("start_date", from.Format(dateLayout))
	}
	if to != nil {
		query.Set("end_date", to.Format(dateLayout))
	}
	path := "/stats/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var dto statsDTO
	if err := c.session.Do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return Stats{}, err
	}
	return dto.toDomain(), nil
}

// ListGoals returns the user's saving goals.
func (c *Client) ListGoals(ctx context.Context) ([]core.SavingGoal, error) {
	resp, err := c.session.Request(ctx, http.MethodGet, "/saving-goals/", nil)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[goalDTO](resp.Body)
	if err != nil {
		return nil, err
	}
	goals := make([]core.SavingGoal, 0, len(dtos))
	for _, dto := range dtos {
		goals = append(goals, dto.toDomain())
	}
	return goals, nil
}

func (c *Client) CreateGoal(ctx context.Context, goal core.SavingGoal) (core.SavingGoal, error) {
	if err := goal.Validate(); err != nil {
		return core.SavingGoal{}, err
	}
	body := goalDTO{
		Title:        goal.Title,
		Description:  goal.Description,
		TargetAmount: decimalAmount{goal.TargetAmount},
		CurrentSaved: decimalAmount{goal.CurrentSaved},
		IsActive:     true,
	}
	var dto goalDTO
	if err := c.session.Do(ctx, http.MethodPost, "/saving-goals/", body, &dto); err != nil {
		return core.SavingGoal{}, err
	}
	return dto.toDomain(), nil
}

// Contribute adds amount to the goal's saved total and persists the new value
// via PATCH. The arithmetic lives in the pure stats layer; this call only
// carries the result over the wire.
func (c *Client) Contribute(ctx context.Context, goal core.SavingGoal, amount core.Money) (core.SavingGoal, error) {
	updated, err := stats.Contribute(goal, amount)
	if err != nil {
		return core.SavingGoal{}, err
	}
	body := map[string]any{
		"current_saved": decimalAmount{updated.CurrentSaved},
	}
	var dto goalDTO
	path := "/saving-goals/" + itoa(goal.ID) + "/"
	if err := c.session.Do(ctx, http.MethodPatch, path, body, &dto); err != nil {
		return core.SavingGoal{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) DeleteGoal(ctx context.Context, id int64) error {
	return c.session.Do(ctx, http.MethodDelete, "/saving-goals/"+itoa(id)+"/", nil, nil)
}
