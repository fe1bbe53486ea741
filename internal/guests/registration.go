package guests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/encoding/charmap"

	"github.com/haasonsaas/concierge/pkg/models"
)

// MaxGuestCount is the largest party a single registration may announce.
const MaxGuestCount = 20

// Source identifies where a registration came from.
type Source string

const (
	// SourceAPI is the HTTP form endpoint. Missing count and status default
	// to 1 and pending.
	SourceAPI Source = "api"

	// SourceRelay is a JSON message relayed through the chat by the website
	// sender account. Every field except comment is required.
	SourceRelay Source = "relay"
)

// Registration is the payload of the website registration form.
type Registration struct {
	Name       string `json:"name"`
	GuestCount int    `json:"guest_count"`
	Status     string `json:"confirmation_status"`
	Comment    string `json:"comment"`
}

// ValidationError is returned for payloads that are well-formed JSON but
// not an acceptable registration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrMalformed wraps payloads that are not JSON at all.
var ErrMalformed = errors.New("malformed registration payload")

const registrationSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "guest_count": {"type": "integer"},
    "confirmation_status": {"type": "string"},
    "comment": {"type": ["string", "null"]}
  }
}`

const (
	registrationSchemaURL      = "https://concierge.local/schemas/registration.json"
	relayRegistrationSchemaURL = "https://concierge.local/schemas/relay_registration.json"
)

const relayRegistrationSchema = `{
  "allOf": [{"$ref": "` + registrationSchemaURL + `"}],
  "required": ["name", "guest_count", "confirmation_status"]
}`

type schemaSet struct {
	once    sync.Once
	initErr error
	bySrc   map[Source]*jsonschema.Schema
}

var schemas schemaSet

func initSchemas() error {
	schemas.once.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(registrationSchemaURL, strings.NewReader(registrationSchema)); err != nil {
			schemas.initErr = err
			return
		}
		if err := c.AddResource(relayRegistrationSchemaURL, strings.NewReader(relayRegistrationSchema)); err != nil {
			schemas.initErr = err
			return
		}
		api, err := c.Compile(registrationSchemaURL)
		if err != nil {
			schemas.initErr = err
			return
		}
		relay, err := c.Compile(relayRegistrationSchemaURL)
		if err != nil {
			schemas.initErr = err
			return
		}
		schemas.bySrc = map[Source]*jsonschema.Schema{SourceAPI: api, SourceRelay: relay}
	})
	return schemas.initErr
}

// Decode parses and validates a registration body. Bodies that are not
// valid UTF-8 are read as Windows-1251, which is what curl on a Russian
// Windows console sends.
func Decode(body []byte, source Source) (*Registration, error) {
	if err := initSchemas(); err != nil {
		return nil, fmt.Errorf("compile registration schema: %w", err)
	}
	schema, ok := schemas.bySrc[source]
	if !ok {
		return nil, fmt.Errorf("unknown registration source %q", source)
	}

	body = bytes.TrimSpace(body)
	if !utf8.Valid(body) {
		decoded, err := charmap.Windows1251.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		body = decoded
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ValidationError{Message: schemaMessage(err)}
	}

	reg := &Registration{GuestCount: 1, Status: string(models.StatusPending)}
	if err := json.Unmarshal(body, reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Validate checks field values and normalizes name, status and comment.
func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Name == "" {
		return &ValidationError{Message: "Name is required"}
	}
	if r.GuestCount < 1 {
		return &ValidationError{Message: "Guest count must be at least 1"}
	}
	if r.GuestCount > MaxGuestCount {
		return &ValidationError{Message: fmt.Sprintf("Guest count cannot exceed %d", MaxGuestCount)}
	}
	status, err := models.ParseConfirmationStatus(r.Status)
	if err != nil {
		return &ValidationError{Message: "Invalid confirmation_status. Must be one of: confirmed, declined, pending"}
	}
	r.Status = string(status)
	return nil
}

// Guest converts the registration into a model ready to be stored.
func (r *Registration) Guest() *models.Guest {
	return &models.Guest{
		Name:       r.Name,
		GuestCount: r.GuestCount,
		Status:     models.ConfirmationStatus(r.Status),
		Comment:    r.Comment,
	}
}

// schemaMessage reports the innermost schema violation.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return strings.TrimPrefix(ve.InstanceLocation, "/") + ": " + ve.Message
}
