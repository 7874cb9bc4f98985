package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/adamwoolhether/xfer"
)

// Config is a job file.
type Config struct {
	Mode            string   `toml:"mode" validate:"omitempty,oneof=poll event"`
	MaxTotal        int      `toml:"max_total" validate:"gte=0"`
	MaxConnsPerHost int      `toml:"max_conns_per_host" validate:"gte=0"`
	Multiplex       int      `toml:"multiplex" validate:"gte=0"`
	RPS             int      `toml:"rps" validate:"gte=0,required_with=Burst"`
	Burst           int      `toml:"burst" validate:"gte=0,required_with=RPS"`
	UserAgent       string   `toml:"user_agent"`
	Share           []string `toml:"share" validate:"dive,oneof=cookie dns tls_session connection psl"`
	Jobs            []Job    `toml:"job" validate:"required,min=1,dive"`
}

// Job is one transfer.
type Job struct {
	URL          string            `toml:"url" validate:"required_without=Target,excluded_with=Target,omitempty,url"`
	Target       *Target           `toml:"target"`
	Output       string            `toml:"output"`
	Upload       string            `toml:"upload" validate:"excluded_with=Output"`
	Method       string            `toml:"method" validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE"`
	Headers      map[string]string `toml:"headers"`
	Timeout      string            `toml:"timeout" validate:"omitempty,duration"`
	SHA256       string            `toml:"sha256" validate:"omitempty,hexadecimal,len=64,excluded_without=Output"`
	MaxSize      int64             `toml:"max_size" validate:"gte=0"`
	Proxy        string            `toml:"proxy" validate:"omitempty,url"`
	PinnedKey    string            `toml:"pinned_public_key" validate:"omitempty,startswith=sha256//"`
	FailOnError  bool              `toml:"fail_on_error"`
	NoFollow     bool              `toml:"no_follow"`
	SkipExisting bool              `toml:"skip_existing"`
	Compressed   bool              `toml:"compressed"`
}

// Target gives a job's URL by parts.
type Target struct {
	Scheme string            `toml:"scheme" validate:"omitempty,oneof=http https"`
	Host   string            `toml:"host" validate:"required"`
	Port   int               `toml:"port" validate:"gte=0,lte=65535"`
	Path   string            `toml:"path"`
	Query  map[string]string `toml:"query"`
}

// url assembles the target.
func (t *Target) url() string {
	opts := []xfer.URLOption{xfer.WithPort(t.Port)}
	for _, k := range slices.Sorted(maps.Keys(t.Query)) {
		opts = append(opts, xfer.WithQuery(k, t.Query[k]))
	}

	return xfer.URL(t.Scheme, t.Host, t.Path, opts...)
}

// timeout returns the parsed Timeout; validation has already checked it.
func (j Job) timeout() time.Duration {
	if j.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(j.Timeout)

	return d
}

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	err := en_translations.RegisterDefaultTranslations(validate, translator)
	if err != nil {
		panic(err)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
	err = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	if err != nil {
		panic(err)
	}
}

// loadConfig decodes and validates the job file at path.
func loadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load job file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load job file: unknown keys %v", undecoded)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate job file: %w", err)
	}

	for i, j := range cfg.Jobs {
		if j.Target != nil {
			cfg.Jobs[i].URL, cfg.Jobs[i].Target = j.Target.url(), nil
		}
	}

	return cfg, nil
}

// Validate checks val against its declared tags.
func Validate(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			field := FieldError{
				Field: verror.Namespace(),
				Err:   customErrForTag(verror.Tag(), verror),
			}
			fields = append(fields, field)
		}
		return fields
	}

	return nil
}

type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	case "duration":
		return verror.Field() + " must be a non-negative duration such as 30s"
	default:
		return verror.Translate(translator)
	}
}
