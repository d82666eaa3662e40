package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// DefaultPhoneRegion is the region assumed for phone numbers written without
// a country code.
const DefaultPhoneRegion = "AR"

// Validator checks untyped records against the compiled schema of each Kind.
// It is safe for concurrent use.
type Validator struct {
	schemas     map[Kind]*jsonschema.Schema
	phoneRegion string
}

// Option configures a Validator.
type Option func(*Validator)

// WithPhoneRegion sets the region used to parse national phone numbers.
func WithPhoneRegion(region string) Option {
	return func(v *Validator) {
		v.phoneRegion = strings.ToUpper(region)
	}
}

// NewValidator compiles the schema of every Kind.
func NewValidator(opts ...Option) (*Validator, error) {
	v := &Validator{
		schemas:     make(map[Kind]*jsonschema.Schema, len(fieldSets)),
		phoneRegion: DefaultPhoneRegion,
	}
	for _, o := range opts {
		o(v)
	}

	for kind, fields := range fieldSets {
		doc, err := json.Marshal(buildJSONSchema(fields))
		if err != nil {
			return nil, eris.Wrapf(err, "schema: marshal %s schema", kind)
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		compiler.AssertFormat = true
		name := string(kind) + ".json"
		if err := compiler.AddResource(name, bytes.NewReader(doc)); err != nil {
			return nil, eris.Wrapf(err, "schema: add %s schema", kind)
		}
		s, err := compiler.Compile(name)
		if err != nil {
			return nil, eris.Wrapf(err, "schema: compile %s schema", kind)
		}
		v.schemas[kind] = s
	}
	return v, nil
}

// Validate normalizes data and checks it against the schema of kind. On
// success it returns the normalized record, which carries exactly the
// fields of kind (absent optional fields as nil). Validation never mutates
// data.
func (v *Validator) Validate(kind Kind, data map[string]any) (map[string]any, *model.Error) {
	op := "schema: validate " + string(kind)
	fields, ok := fieldSets[kind]
	if !ok {
		return nil, model.NewError(model.KindValidation, op, "unknown schema kind %q", kind)
	}
	if data == nil {
		return nil, model.NewError(model.KindValidation, op, "record is empty")
	}

	out := v.normalize(fields, data)
	for _, f := range fields {
		if !f.required {
			continue
		}
		val, present := out[f.name]
		if !present || val == nil {
			return nil, fieldError(op, f.name, "required field is missing")
		}
		if s, ok := val.(string); ok && s == "" {
			return nil, fieldError(op, f.name, "required field is empty")
		}
	}

	// The schema library works on the generic JSON form.
	doc, err := roundTrip(out)
	if err != nil {
		return nil, &model.Error{Kind: model.KindValidation, Op: op, Err: err}
	}
	if err := v.schemas[kind].Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			return nil, fieldError(op, strings.TrimPrefix(leaf.InstanceLocation, "#"), leaf.Message)
		}
		return nil, &model.Error{Kind: model.KindValidation, Op: op, Err: err}
	}

	m, _ := doc.(map[string]any)
	return m, nil
}

// Company validates data as a CompanyData record.
func (v *Validator) Company(data map[string]any) (*model.CompanyData, *model.Error) {
	var c model.CompanyData
	if err := v.decode(KindCompany, data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Email validates data as an EmailData record.
func (v *Validator) Email(data map[string]any) (*model.EmailData, *model.Error) {
	var e model.EmailData
	if err := v.decode(KindEmail, data, &e); err != nil {
		return nil, err
	}
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	return &e, nil
}

// Profile validates data as a UserProfile with name, role and email
// required.
func (v *Validator) Profile(data map[string]any) (*model.UserProfile, *model.Error) {
	var p model.UserProfile
	if err := v.decode(KindProfile, data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LenientProfile validates data as a UserProfile where every field is
// optional.
func (v *Validator) LenientProfile(data map[string]any) (*model.UserProfile, *model.Error) {
	var p model.UserProfile
	if err := v.decode(KindLenientProfile, data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (v *Validator) decode(kind Kind, data map[string]any, dst any) *model.Error {
	out, verr := v.Validate(kind, data)
	if verr != nil {
		return verr
	}
	b, err := json.Marshal(out)
	if err == nil {
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		return &model.Error{Kind: model.KindValidation, Op: "schema: decode " + string(kind), Err: err}
	}
	return nil
}

func fieldError(op, path, reason string) *model.Error {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &model.Error{Kind: model.KindValidation, Op: op, Field: path, Detail: reason}
}

// leafCause follows the first cause down to the most specific failure.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

func roundTrip(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal record")
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, eris.Wrap(err, "schema: unmarshal record")
	}
	return out, nil
}
