package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Collection names, mirrored in storage paths ("users/{account}/{collection}").
const (
	CollectionIncomes         = "incomes"
	CollectionPlannedExpenses = "plannedExpenses"
	CollectionCreditCards     = "creditCards"
	CollectionUtilities       = "utilities"
	CollectionSalary          = "salary"
)

// CategoryOther is the fallback bucket for records without a category.
const CategoryOther = "Outros"

// Fixed category labels per record type.
var (
	IncomeCategories         = []string{"Salário", "Freelance", "Investimentos", "Bônus", CategoryOther}
	PlannedExpenseCategories = []string{"Assinaturas", "Educação", "Saúde", "Transporte", "Moradia", CategoryOther}
	UtilityCategories        = []string{"Água", "Energia", "Internet", "Gás", "IPTU", CategoryOther}
)

type (
	// Money is an amount in cents. Avoids float drift in sums.
	Money struct {
		Cents int64
	}

	// Date is a calendar date; the time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	// MonthKey identifies a statement period in "YYYY-MM" form.
	MonthKey string

	// Income is a single money-in entry.
	Income struct {
		ID          string
		Description string
		Amount      Money
		Date        Date
		Category    string
	}

	// PlannedExpense is a recurring or expected expense. DueDate is a
	// free-text recurrence description ("todo dia 5"), not a parsed date.
	PlannedExpense struct {
		ID       string
		Name     string
		Category string
		Amount   Money
		DueDate  string
	}

	// CreditCardStatement is one card bill for one month.
	CreditCardStatement struct {
		ID                  string
		CardName            string
		Bank                string
		Amount              Money
		Month               MonthKey
		PreviousMonthAmount *Money
	}

	// Utility is a household service bill (water, energy, ...).
	Utility struct {
		ID               string
		Name             string
		Category         string
		Amount           Money
		DueDate          string
		PreviousAmount   *Money
		ExcludeFromSplit bool
	}

	// Salary is the per-account singleton; writes upsert it.
	Salary struct {
		Amount Money
		Month  MonthKey
	}
)

var (
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCardName    = errors.New("empty card name")
	ErrEmptyBank        = errors.New("empty bank")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonthKey  = errors.New("invalid month key")
)

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date back in "YYYY-MM-DD" form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthKeyOf returns the month key containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// ParseMonthKey validates and returns a "YYYY-MM" key.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if !monthKeyRe.MatchString(s) {
		return "", ErrInvalidMonthKey
	}
	return MonthKey(s), nil
}

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

// Time returns the first instant of the month in UTC.
func (m MonthKey) Time() time.Time {
	t, _ := time.Parse("2006-01", string(m))
	return t
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func validCategory(allowed []string, c string) bool {
	for _, a := range allowed {
		if a == c {
			return true
		}
	}
	return false
}

func (i Income) Validate() error {
	if len(strings.TrimSpace(i.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(i.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if err := i.Date.Validate(); err != nil {
		return err
	}
	if !validCategory(IncomeCategories, i.Category) {
		return ErrInvalidCategory
	}
	return nil
}

func (p PlannedExpense) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if !validCategory(PlannedExpenseCategories, p.Category) {
		return ErrInvalidCategory
	}
	return nil
}

func (c CreditCardStatement) Validate() error {
	if len(strings.TrimSpace(c.CardName)) == 0 {
		return ErrEmptyCardName
	}
	if len(strings.TrimSpace(c.Bank)) == 0 {
		return ErrEmptyBank
	}
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if err := c.Month.Validate(); err != nil {
		return err
	}
	if c.PreviousMonthAmount != nil {
		if err := c.PreviousMonthAmount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (u Utility) Validate() error {
	if len(strings.TrimSpace(u.Name)) == 0 {
		return ErrEmptyName
	}
	if len(u.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := u.Amount.Validate(); err != nil {
		return err
	}
	if !validCategory(UtilityCategories, u.Category) {
		return ErrInvalidCategory
	}
	if u.PreviousAmount != nil {
		if err := u.PreviousAmount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s Salary) Validate() error {
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	return s.Month.Validate()
}
