package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"calorie-chat/internal/chat"
	"calorie-chat/internal/extract"
	"calorie-chat/internal/models"
)

const chatHelp = `Опишите, что вы съели, и я посчитаю калории.
Команды:
  /save              сохранить приём пищи
  /discard           отменить текущий приём пищи
  /add NAME [GRAMS]  добавить продукт
  /rm N              удалить продукт N
  /weight N GRAMS    изменить вес продукта N
  /kcal N KCAL       изменить калории продукта N
  /clear             очистить диалог
  /quit              выйти`

type mealExtractor interface {
	ExtractMeal(ctx context.Context, text string) (*extract.Result, error)
}

type mealSaver interface {
	SaveMeal(ctx context.Context, userID string, meal models.Meal) (*models.MealRecord, error)
}

// chatShell is a line-oriented front end over the chat state.
type chatShell struct {
	state     chat.State
	extractor mealExtractor
	store     mealSaver
	userID    string
	out       io.Writer

	assistant *color.Color
	warn      *color.Color
	prompt    *color.Color
}

func newChatShell(extractor mealExtractor, store mealSaver, userID string, out io.Writer) *chatShell {
	return &chatShell{
		extractor: extractor,
		store:     store,
		userID:    userID,
		out:       out,
		assistant: color.New(color.FgGreen),
		warn:      color.New(color.FgYellow, color.Bold),
		prompt:    color.New(color.FgCyan, color.Bold),
	}
}

// run reads lines until EOF, /quit or ctx is cancelled. The reader goroutine may
// stay blocked on input after cancellation; the process is about to exit then.
func (s *chatShell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, chatHelp)

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			errc <- err
			close(lines)
		}()
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()

	for {
		s.prompt.Fprint(s.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if quit := s.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

// handleLine processes one line of input and reports whether the user asked to quit.
func (s *chatShell) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		s.analyze(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	var err error
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/save":
		s.save(ctx)
	case "/discard":
		s.state = chat.Discard(s.state)
		fmt.Fprintln(s.out, "Приём пищи отменён.")
	case "/clear":
		s.state = chat.Clear(s.state)
		fmt.Fprintln(s.out, "Диалог очищен.")
	case "/add":
		err = s.add(fields[1:])
	case "/rm":
		err = s.remove(fields[1:])
	case "/weight", "/kcal":
		err = s.edit(fields[0], fields[1:])
	default:
		err = fmt.Errorf("неизвестная команда %s, /help для списка", fields[0])
	}
	if err != nil {
		s.warn.Fprintln(s.out, err.Error())
	}
	return false
}

func (s *chatShell) analyze(ctx context.Context, text string) {
	s.state = chat.AddMessage(s.state, chat.RoleUser, text)
	next, err := chat.Begin(s.state)
	if err != nil {
		s.warn.Fprintln(s.out, err.Error())
		return
	}
	s.state = next

	res, err := s.extractor.ExtractMeal(ctx, text)
	if err != nil {
		s.state = chat.Fail(s.state, err)
	} else {
		s.state = chat.ReceiveExtraction(s.state, res.Meal, res.DisplayText)
	}
	s.printLastMessage()
}

func (s *chatShell) save(ctx context.Context) {
	if s.state.Pending == nil {
		s.warn.Fprintln(s.out, "Нечего сохранять.")
		return
	}
	next, err := chat.Begin(s.state)
	if err != nil {
		s.warn.Fprintln(s.out, err.Error())
		return
	}
	s.state = next

	meal, err := models.ValidateForSave(*s.state.Pending)
	if err != nil {
		s.state = chat.Fail(s.state, err)
		s.printLastMessage()
		return
	}
	rec, err := s.store.SaveMeal(ctx, s.userID, meal)
	if err != nil {
		s.state = chat.Fail(s.state, err)
	} else {
		s.state = chat.Confirmed(s.state, rec.ID)
	}
	s.printLastMessage()
}

func (s *chatShell) add(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("использование: /add NAME [GRAMS]")
	}
	p := models.Product{Name: strings.Join(args, " ")}
	if len(args) > 1 {
		if g, err := strconv.Atoi(args[len(args)-1]); err == nil {
			p.Name = strings.Join(args[:len(args)-1], " ")
			p.WeightGrams = models.IntPtr(g)
		}
	}
	next, err := chat.AddProduct(s.state, p)
	if err != nil {
		return err
	}
	s.state = next
	s.printPending()
	return nil
}

func (s *chatShell) remove(args []string) error {
	p, err := s.productAt(args, 1)
	if err != nil {
		return err
	}
	next, err := chat.RemoveProduct(s.state, p.ID)
	if err != nil {
		return err
	}
	s.state = next
	s.printPending()
	return nil
}

func (s *chatShell) edit(cmd string, args []string) error {
	p, err := s.productAt(args, 2)
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%s: ожидается целое число, получено %q", cmd, args[1])
	}

	var patch models.ProductPatch
	if cmd == "/weight" {
		patch.WeightGrams = &v
	} else {
		patch.Calories = &v
	}
	next, err := chat.EditProduct(s.state, p.ID, patch)
	if err != nil {
		return err
	}
	s.state = next
	s.printPending()
	return nil
}

// productAt resolves the 1-based product number in args[0].
func (s *chatShell) productAt(args []string, want int) (models.Product, error) {
	if s.state.Pending == nil {
		return models.Product{}, chat.ErrNoPending
	}
	if len(args) != want {
		return models.Product{}, fmt.Errorf("неверное число аргументов")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.state.Pending.Products) {
		return models.Product{}, fmt.Errorf("нет продукта с номером %s", args[0])
	}
	return s.state.Pending.Products[n-1], nil
}

func (s *chatShell) printLastMessage() {
	if n := len(s.state.Messages); n > 0 {
		s.assistant.Fprintln(s.out, s.state.Messages[n-1].Text)
	}
}

func (s *chatShell) printPending() {
	if s.state.Pending == nil {
		return
	}
	s.assistant.Fprintln(s.out, extract.Summary(*s.state.Pending))
}
