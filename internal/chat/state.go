// Package chat holds the conversation state of one chat session. Every function
// takes a State and returns the next one; the caller owns the value.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"calorie-chat/internal/models"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrBusy is returned when an action needs the network while a call is in flight.
	ErrBusy      = errors.New("another request is in progress")
	ErrNoPending = errors.New("no pending meal")
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type State struct {
	Messages []Message
	Pending  *models.Meal
	Loading  bool
	Err      string
}

func (s State) withMessages() State {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}

func AddMessage(s State, role Role, text string) State {
	s = s.withMessages()
	s.Messages = append(s.Messages, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	return s
}

// Begin marks a network call as in flight. Only one call may be outstanding.
func Begin(s State) (State, error) {
	if s.Loading {
		return s, ErrBusy
	}
	s.Loading = true
	s.Err = ""
	return s, nil
}

// ReceiveExtraction stores a freshly extracted meal as the pending meal and
// appends the assistant's summary.
func ReceiveExtraction(s State, meal models.Meal, displayText string) State {
	s.Loading = false
	s.Err = ""
	m := models.RecomputeTotal(meal)
	s.Pending = &m
	return AddMessage(s, RoleAssistant, displayText)
}

// Fail ends the in-flight call with an error. The pending meal is kept so the
// user can retry.
func Fail(s State, err error) State {
	s.Loading = false
	s.Err = err.Error()
	return AddMessage(s, RoleAssistant, "Ошибка: "+err.Error()+". Попробуйте ещё раз.")
}

func EditProduct(s State, productID string, patch models.ProductPatch) (State, error) {
	if s.Pending == nil {
		return s, ErrNoPending
	}
	m, err := models.UpdateProduct(*s.Pending, productID, patch)
	if err != nil {
		return s, err
	}
	s.Pending = &m
	return s, nil
}

func AddProduct(s State, p models.Product) (State, error) {
	if s.Pending == nil {
		return s, ErrNoPending
	}
	m, err := models.AddOrReplaceProduct(*s.Pending, p)
	if err != nil {
		return s, err
	}
	s.Pending = &m
	return s, nil
}

func RemoveProduct(s State, productID string) (State, error) {
	if s.Pending == nil {
		return s, ErrNoPending
	}
	m := models.RemoveProduct(*s.Pending, productID)
	s.Pending = &m
	return s, nil
}

// Confirmed clears the pending meal after it was persisted under mealID.
func Confirmed(s State, mealID string) State {
	s.Loading = false
	s.Err = ""
	s.Pending = nil
	return AddMessage(s, RoleAssistant, "Приём пищи сохранён в дневник. ID: "+mealID)
}

// Discard drops the pending meal without persisting it.
func Discard(s State) State {
	s.Pending = nil
	return s
}

// Clear resets the conversation. An in-flight call keeps its loading flag.
func Clear(s State) State {
	return State{Loading: s.Loading}
}
