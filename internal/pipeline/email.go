package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen-cli/internal/llm"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/prompt"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// KeywordCount is the number of keywords extracted from each email body.
const KeywordCount = 5

// DefaultSubject is used when the reply carries no subject line.
const DefaultSubject = "Propuesta"

// subjectLabels are stripped from the first line of a reply. Matching is
// case-insensitive.
var subjectLabels = []string{"asunto:", "subject:"}

// EmailStage writes a personalized sales email for one company.
type EmailStage struct {
	completer llm.Completer
	validator *schema.Validator
	now       func() time.Time
}

// NewEmailStage creates an EmailStage.
func NewEmailStage(completer llm.Completer, validator *schema.Validator) *EmailStage {
	return &EmailStage{completer: completer, validator: validator, now: time.Now}
}

// Generate drafts the email and extracts its keywords. A failed completion
// is returned as a TRANSPORT_ERROR; the caller records it and moves on.
func (s *EmailStage) Generate(ctx context.Context, company model.CompanyData, profile *model.UserProfile) (*model.EmailData, *model.Error) {
	log := zap.L().With(zap.String("company", company.CompanyName))

	reply, err := s.completer.Complete(ctx, prompt.Email(company, profile))
	if err != nil {
		log.Warn("email: completion failed", zap.Error(err))
		return nil, model.WrapError(model.KindTransport, "email: generate", err)
	}
	subject, body := StructureEmail(reply)

	kwReply, err := s.completer.Complete(ctx, prompt.Keywords(body, KeywordCount))
	if err != nil {
		log.Warn("email: keyword completion failed", zap.Error(err))
		return nil, model.WrapError(model.KindTransport, "email: keywords", err)
	}

	data := model.EmailData{
		EmailSubject: subject,
		EmailBody:    body,
		Keywords:     SplitKeywords(kwReply, KeywordCount),
		GeneratedAt:  model.Timestamp(s.now()),
	}
	raw, err := data.Map()
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "email: encode", err)
	}
	email, verr := s.validator.Email(raw)
	if verr != nil {
		log.Warn("email: invalid email", zap.String("raw", prompt.Truncate(reply, 200)), zap.Error(verr))
		return nil, verr
	}

	log.Debug("email: generated", zap.String("subject", email.EmailSubject), zap.Strings("keywords", email.Keywords))
	return email, nil
}

// StructureEmail splits a model reply into subject and body. The first
// non-blank line, minus an "Asunto:" or "Subject:" label, is the subject;
// every following line is the body.
func StructureEmail(reply string) (subject, body string) {
	lines := strings.Split(norm.NFC.String(strings.ReplaceAll(reply, "\r\n", "\n")), "\n")

	first := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return DefaultSubject, ""
	}

	subject = stripSubjectLabel(lines[first])
	if subject == "" {
		subject = DefaultSubject
	}
	body = strings.TrimSpace(strings.Join(lines[first+1:], "\n"))
	return subject, body
}

func stripSubjectLabel(line string) string {
	line = strings.TrimSpace(line)
	// Models often bold the label.
	bare := strings.TrimLeft(line, "*#_ ")
	for _, label := range subjectLabels {
		if len(bare) >= len(label) && strings.EqualFold(bare[:len(label)], label) {
			return strings.Trim(strings.TrimSpace(bare[len(label):]), "*_ ")
		}
	}
	return line
}

// SplitKeywords reads a comma or newline separated keyword list, dropping
// list markers, blanks and duplicates, and keeps at most n entries.
func SplitKeywords(reply string, n int) []string {
	parts := strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), "-*•.\"'"))
	}
	out := prompt.MergeKeywords(parts)
	if len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []string{}
	}
	return out
}
