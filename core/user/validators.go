package user

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzip"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/klassenbuch/core"
)

const (
	pwdMinLen = 8
	pwdMaxSim = .7
)

// passwordRule is one step of the password policy. check gets the password
// and the user attributes it must not resemble.
type passwordRule struct {
	tag   string
	text  string
	check func(pwd string, attrs []string) bool
}

// passwordPolicy runs in order; only the first broken rule is reported.
var passwordPolicy = []passwordRule{
	{
		tag:  "pwdminlen",
		text: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		check: func(pwd string, _ []string) bool {
			return len([]rune(pwd)) >= pwdMinLen
		},
	},
	{
		tag:  "pwdnospace",
		text: "password must not contain whitespace",
		check: func(pwd string, _ []string) bool {
			return strings.IndexFunc(pwd, unicode.IsSpace) < 0
		},
	},
	{
		tag:  "pwdnotallnum",
		text: "password cannot be entirely numeric",
		check: func(pwd string, _ []string) bool {
			return strings.IndexFunc(pwd, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
		},
	},
	{
		tag:   "pwdcplx",
		text:  "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		check: complexEnough,
	},
	{
		tag:   "pwdtoosim",
		text:  "password cannot be similar to user attributes",
		check: notSimilar,
	},
	{
		tag:  "pwdnocommon",
		text: "password is too common",
		check: func(pwd string, _ []string) bool {
			return !commonPasswords.has(strings.ToLower(pwd))
		},
	},
}

func complexEnough(pwd string, _ []string) bool {
	var upper, lower, digit, special bool
	for _, r := range pwd {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
		digit = digit || unicode.IsDigit(r)
		special = special || !isASCIIAlnum(r)
	}
	return upper && lower && digit && special
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func notSimilar(pwd string, attrs []string) bool {
	chars := strings.Split(strings.ToLower(pwd), "")
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		m := difflib.NewMatcher(chars, strings.Split(strings.ToLower(attr), ""))
		if m.QuickRatio() >= pwdMaxSim {
			return false
		}
	}
	return true
}

type passwordSet struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

var commonPasswords = &passwordSet{set: make(map[string]struct{})}

func (s *passwordSet) has(pwd string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[pwd]
	return ok
}

func (s *passwordSet) add(pwds ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pwd := range pwds {
		s.set[strings.ToLower(pwd)] = struct{}{}
	}
}

// InitValidators registers the password policy on every input carrying a password.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(passwordStructValidation, NewUser{}, ChangePassword{}, ResetPassword{})
	for _, rule := range passwordPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

// LoadCommonPasswords reads the gzipped list at assets/common-passwords.txt.gz, one password per line.
func LoadCommonPasswords(conf *core.Config, logger core.Logger) {
	path := filepath.Join(conf.WorkDir, "assets", "common-passwords.txt.gz")
	if err := loadCommonPasswords(path); err != nil {
		logger.Warn(fmt.Sprintf("loading common passwords: %v", err), err)
	}
}

func loadCommonPasswords(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	var pwds []string
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	if err = scanner.Err(); err != nil {
		return err
	}
	commonPasswords.add(pwds...)
	return nil
}

func passwordStructValidation(sl validator.StructLevel) {
	var pwd string
	var attrs []string
	switch in := sl.Current().Interface().(type) {
	case NewUser:
		pwd, attrs = in.Password, []string{in.Name, in.Email}
	case ChangePassword:
		pwd = in.Password
	case ResetPassword:
		pwd = in.Password
	}
	if pwd == "" { // reported by `required`
		return
	}
	for _, rule := range passwordPolicy {
		if !rule.check(pwd, attrs) {
			sl.ReportError(pwd, "password", "Password", rule.tag, "")
			return
		}
	}
}
