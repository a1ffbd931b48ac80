package dialguard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/ai-screener/internal/interview"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type questionsGuard struct{ toggle }

// NewQuestions refuses sessions without any usable question.
func NewQuestions() Guard {
	return &questionsGuard{}
}

func (g *questionsGuard) Name() string { return "questions" }

func (g *questionsGuard) Check(_ context.Context, s *interview.Session) error {
	if len(s.Questions) == 0 {
		return errors.New("session has no questions")
	}
	for i, q := range s.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("question %d is empty", i)
		}
	}
	return nil
}

type e164Guard struct{ toggle }

// NewE164 refuses numbers that are not in E.164 form.
func NewE164() Guard {
	return &e164Guard{}
}

func (g *e164Guard) Name() string { return "e164" }

func (g *e164Guard) Check(_ context.Context, s *interview.Session) error {
	if !e164.MatchString(s.Phone) {
		return fmt.Errorf("phone %q is not an E.164 number", s.Phone)
	}
	return nil
}

type allowListGuard struct {
	toggle
	allowed map[string]struct{}
}

// NewAllowList refuses numbers outside the list. An empty list allows everything.
func NewAllowList(numbers []string) Guard {
	allowed := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			allowed[n] = struct{}{}
		}
	}
	return &allowListGuard{allowed: allowed}
}

func (g *allowListGuard) Name() string { return "allow_list" }

func (g *allowListGuard) Check(_ context.Context, s *interview.Session) error {
	if len(g.allowed) == 0 {
		return nil
	}
	if _, ok := g.allowed[s.Phone]; !ok {
		return fmt.Errorf("phone %s is not in the allow list", s.Phone)
	}
	return nil
}

func (g *allowListGuard) Status() Status {
	return Status{
		Name:    g.Name(),
		Enabled: g.IsEnabled(),
		Reason:  g.reason,
		Details: map[string]string{"numbers": strconv.Itoa(len(g.allowed))},
	}
}

type doNotCallGuard struct {
	toggle
	path string
}

// NewDoNotCall refuses numbers listed in the file at path. The file is
// re-read on every check so edits apply without a restart.
func NewDoNotCall(path string) Guard {
	return &doNotCallGuard{path: strings.TrimSpace(path)}
}

func (g *doNotCallGuard) Name() string { return "do_not_call" }

func (g *doNotCallGuard) Check(_ context.Context, s *interview.Session) error {
	if g.path == "" {
		return nil
	}

	blocked, err := ReadNumbers(g.path)
	if err != nil {
		return fmt.Errorf("read do-not-call file: %w", err)
	}
	if _, ok := blocked[s.Phone]; ok {
		return fmt.Errorf("phone %s is on the do-not-call list", s.Phone)
	}
	return nil
}

func (g *doNotCallGuard) Status() Status {
	details := map[string]string{}
	if g.path != "" {
		details["path"] = g.path
	}
	return Status{Name: g.Name(), Enabled: g.IsEnabled(), Reason: g.reason, Details: details}
}

// ReadNumbers loads one number per line. Blank lines and lines starting
// with # are ignored. A missing file is treated as empty.
func ReadNumbers(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	numbers := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		numbers[line] = struct{}{}
	}
	return numbers, scanner.Err()
}
