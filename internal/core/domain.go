package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	IouOwedToMe IouDirection = "owed_to_me"
	IouIOwe     IouDirection = "i_owe"
)

// CashWalletID identifies the synthetic "cash on hand" wallet. It is built
// from unassigned income and expenses and is never stored.
const CashWalletID = "cash"

const dateLayout = "2006-01-02"

type (
	IouDirection string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string `json:"id"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		WalletID    string `json:"wallet_id,omitempty"`
	}

	Income struct {
		ID       string `json:"id"`
		Date     Date   `json:"date"`
		Source   string `json:"source"`
		Amount   Money  `json:"amount"`
		WalletID string `json:"wallet_id,omitempty"`
	}

	// BudgetGoal is a monthly spending limit for one expense category.
	BudgetGoal struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	Iou struct {
		ID           string       `json:"id"`
		Counterparty string       `json:"counterparty"`
		Amount       Money        `json:"amount"`
		Direction    IouDirection `json:"direction"`
		Paid         bool         `json:"paid"`
		DueDate      Date         `json:"due_date"`
	}

	WishlistItem struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Target Money  `json:"target_amount"`
		Saved  Money  `json:"saved_amount"`
	}

	Wallet struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Balance Money  `json:"balance"`
	}

	UnlockedAchievement struct {
		ID         string    `json:"id"`
		UnlockedAt time.Time `json:"unlocked_at"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidDirection = errors.New("invalid iou direction")
	ErrReservedWallet   = errors.New("wallet id is reserved")
	ErrMissingDate      = errors.New("date cannot be zero")
	ErrTooLong          = errors.New("too long")
	ErrNotFound         = errors.New("record not found")
)

// IsValidation reports whether err comes from validating a record.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidAmount, ErrEmptyDescription,
		ErrEmptyCategory, ErrEmptyName, ErrInvalidDirection, ErrReservedWallet,
		ErrMissingDate, ErrTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// InMonth reports whether the date falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > 200 {
		return fmt.Errorf("description %w (max 200 characters)", ErrTooLong)
	}
	return nil
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyName
	}
	if len(s) > 100 {
		return fmt.Errorf("name %w (max 100 characters)", ErrTooLong)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(i.Source); err != nil {
		return err
	}
	return i.Amount.Validate()
}

func (b BudgetGoal) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Limit.Validate()
}

func (d IouDirection) Valid() bool {
	return d == IouOwedToMe || d == IouIOwe
}

func (o Iou) Validate() error {
	if err := validateName(o.Counterparty); err != nil {
		return err
	}
	if err := o.Amount.Validate(); err != nil {
		return err
	}
	if !o.Direction.Valid() {
		return ErrInvalidDirection
	}
	if !o.DueDate.IsZero() {
		if err := o.DueDate.Validate(); err != nil {
			return fmt.Errorf("invalid due date: %w", err)
		}
	}
	return nil
}

func (w WishlistItem) Validate() error {
	if err := validateName(w.Name); err != nil {
		return err
	}
	if err := w.Target.Validate(); err != nil {
		return err
	}
	if w.Saved.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Reached reports whether the saved amount covers a positive target.
func (w WishlistItem) Reached() bool {
	return w.Target.Cents > 0 && w.Saved.Cents >= w.Target.Cents
}

func (w Wallet) Validate() error {
	if w.ID == CashWalletID {
		return ErrReservedWallet
	}
	return validateName(w.Name)
}
