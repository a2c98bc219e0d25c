package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"movedesk/internal"
	"movedesk/internal/clarify"
)

type console struct {
	in  *bufio.Scanner
	out io.Writer
	eof bool
}

func (c *console) readLine() string {
	if c.eof || !c.in.Scan() {
		c.eof = true
		return ""
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// runClarifyWizard drives one clarification session interactively. Per entry
// the user answers the attribute questions; "skip" defers the entry, "quit"
// (or EOF) exits with whatever is still pending.
func runClarifyWizard(s *clarify.Session, language string, in io.Reader, out io.Writer) error {
	c := &console{in: bufio.NewScanner(in), out: out}
	skipped := map[int]bool{}

	for !c.eof {
		switch s.State() {
		case clarify.StateAllResolved:
			c.printf("all items resolved:\n")
			printItemsTo(c.out, s.Items(), nil)
			return nil

		case clarify.StateIdle:
			next := -1
			for _, e := range s.Pending() {
				if !skipped[e.ItemIndex] {
					next = e.ItemIndex
					break
				}
			}
			if next < 0 {
				c.printf("%d clarifications left pending\n", s.QueueLen())
				return nil
			}
			if err := s.Resume(next); err != nil {
				return err
			}

		case clarify.StatePrompting:
			if err := promptEntry(s, c, language, skipped); err != nil {
				return err
			}

		case clarify.StateAlternatives:
			if err := promptAlternatives(s, c, language); err != nil {
				return err
			}

		case clarify.StateCustomNeeded:
			if err := promptCustomItem(s, c); err != nil {
				return err
			}
		}
	}

	if s.State() == clarify.StatePrompting || s.State() == clarify.StateAlternatives || s.State() == clarify.StateCustomNeeded {
		s.Skip()
	}
	if s.QueueLen() > 0 {
		c.printf("%d clarifications left pending\n", s.QueueLen())
	}
	return nil
}

func promptEntry(s *clarify.Session, c *console, language string, skipped map[int]bool) error {
	active, ok := s.Active()
	if !ok {
		return errors.New("no active clarification entry")
	}

	p := s.Progress()
	name := entryName(active, language)
	if p.TypeCount > 1 {
		c.printf("\n%s (%d of %d)  [%d/%d done]\n", name, p.TypeOrdinal, p.TypeCount, p.Completed, p.Total)
	} else {
		c.printf("\n%s  [%d/%d done]\n", name, p.Completed, p.Total)
	}

	for _, q := range active.Questions {
		prompt := questionLabel(q, language)
		if q.Required {
			prompt += " *"
		}
		if len(q.Options) > 0 {
			c.printf("%s:\n", prompt)
			for i, opt := range q.Options {
				c.printf("  %d) %s\n", i+1, optionLabel(opt, language))
			}
			c.printf("> ")
		} else {
			c.printf("%s: ", prompt)
		}

		line := c.readLine()
		if c.eof {
			return nil
		}
		switch strings.ToLower(line) {
		case "skip":
			skipped[active.ItemIndex] = true
			s.Skip()
			return nil
		case "quit":
			for _, e := range s.Pending() {
				skipped[e.ItemIndex] = true
			}
			s.Skip()
			return nil
		}

		value := line
		if len(q.Options) > 0 {
			if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Options) {
				value = q.Options[n-1].Value
			}
		}
		if value != "" {
			if err := s.SetAnswer(q.Code, value); err != nil {
				return err
			}
		}
	}

	outcome, err := s.SubmitAnswers(context.Background())
	var missing *clarify.MissingAnswersError
	if errors.As(err, &missing) {
		c.printf("required: %s\n", strings.Join(missing.Labels, ", "))
		return nil
	}
	if err != nil {
		c.printf("lookup failed, try again: %v\n", err)
		return nil
	}
	if outcome == clarify.OutcomeResolved {
		c.printf("resolved\n")
	}
	return nil
}

func promptAlternatives(s *clarify.Session, c *console, language string) error {
	alts := s.Alternatives()
	c.printf("no exact match; closest variants:\n")
	for i, alt := range alts {
		name := alt.NameEn
		if language == "he" && alt.NameHe != "" {
			name = alt.NameHe
		}
		c.printf("  %d) %s @%s\n", i+1, name, alt.BasePrice.String())
	}
	c.printf("choose number, c=custom item, b=back: ")

	line := c.readLine()
	if c.eof {
		return nil
	}
	switch strings.ToLower(line) {
	case "b":
		s.Back()
		return nil
	case "c":
		return promptCustomItem(s, c)
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(alts) {
		c.printf("invalid choice\n")
		return nil
	}
	if err := s.ChooseAlternative(n - 1); err != nil {
		c.printf("could not apply: %v\n", err)
		return nil
	}
	c.printf("resolved\n")
	return nil
}

func promptCustomItem(s *clarify.Session, c *console) error {
	draft := s.SeedCustomDraft()
	c.printf("custom item (empty keeps the suggested value):\n")

	draft.NameEn = promptField(c, "name (en)", draft.NameEn)
	draft.NameHe = promptField(c, "name (he)", draft.NameHe)
	draft.Category = promptField(c, "category", draft.Category)
	if priceRaw := promptField(c, "estimated price", ""); priceRaw != "" {
		if price, err := decimal.NewFromString(priceRaw); err == nil {
			draft.EstimatedPrice = price
		} else {
			c.printf("price not a number, keeping 0\n")
		}
	}
	if c.eof {
		return nil
	}

	err := s.CreateCustomItem(context.Background(), draft)
	var validation *clarify.CustomItemValidationError
	if errors.As(err, &validation) {
		c.printf("missing fields: %s\n", strings.Join(validation.Fields, ", "))
		return nil
	}
	if err != nil {
		c.printf("custom item failed: %v\n", err)
		return nil
	}
	c.printf("custom item created\n")
	return nil
}

func promptField(c *console, label, current string) string {
	if current != "" {
		c.printf("%s [%s]: ", label, current)
	} else {
		c.printf("%s: ", label)
	}
	line := c.readLine()
	if line == "" {
		return current
	}
	return line
}

func entryName(e internal.ClarificationEntry, language string) string {
	if language == "he" && e.NameHe != "" {
		return e.NameHe
	}
	if e.NameEn != "" {
		return e.NameEn
	}
	return e.ItemTypeID
}

func questionLabel(q internal.AttributeQuestion, language string) string {
	if language == "he" && q.LabelHe != "" {
		return q.LabelHe
	}
	if q.LabelEn != "" {
		return q.LabelEn
	}
	return q.Code
}

func optionLabel(o internal.AttributeOption, language string) string {
	if language == "he" && o.LabelHe != "" {
		return o.LabelHe
	}
	if o.LabelEn != "" {
		return o.LabelEn
	}
	return o.Value
}
