// Package mailer is the SES façade. It sends one message per call from a
// default sender that can be overridden per message.
package mailer

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"aws_facade/internal/audit"
	"aws_facade/internal/facade"
)

const charset = "UTF-8"

// PlaceholderTextBody is what plain-text messages carry unless
// Config.UseTextBody is set.
const PlaceholderTextBody = "This is the body of the email."

var opSend = audit.Declare("send",
	audit.Arg("toAddresses"),
	audit.Arg("subject"),
	audit.Arg("body"),
	audit.Arg("replyToAddresses"),
	audit.Arg("isHtml"),
	audit.Arg("fromAddressOverride"),
	audit.Arg("fromUserOverride"),
)

// To turns one or more addresses into the recipient list Send expects.
func To(addresses ...string) []string {
	return addresses
}

// SendOptions are the optional arguments of Send.
type SendOptions struct {
	ReplyTo []string
	// PlainText sends a text/plain part instead of HTML.
	PlainText   bool
	FromAddress string
	FromUser    string
}

// Config configures a Mailer.
type Config struct {
	Credentials facade.Credentials
	FromAddress string
	FromUser    string
	Sink        audit.Sink
	// UseTextBody makes plain-text messages carry the caller's body. Without
	// it they carry PlaceholderTextBody.
	UseTextBody bool
	// Builder defaults to NewClientBuilder().
	Builder facade.Builder[API]
}

// Mailer wraps SES.
type Mailer struct {
	*facade.Base
	client      *facade.Regional[API]
	useTextBody bool

	mu          sync.RWMutex
	fromAddress string
	fromUser    string
}

var _ facade.Account = (*Mailer)(nil)

// New creates a Mailer.
func New(ctx context.Context, cfg Config) (*Mailer, error) {
	build := cfg.Builder
	if build == nil {
		build = NewClientBuilder()
	}

	client, err := facade.NewRegional(ctx, cfg.Credentials, build)
	if err != nil {
		return nil, err
	}

	return &Mailer{
		Base:        facade.NewBase(audit.CategoryMailer, cfg.Sink),
		client:      client,
		useTextBody: cfg.UseTextBody,
		fromAddress: cfg.FromAddress,
		fromUser:    cfg.FromUser,
	}, nil
}

// Credentials returns the credentials in use.
func (m *Mailer) Credentials() facade.Credentials {
	return m.client.Credentials()
}

// Region returns the current region.
func (m *Mailer) Region() string {
	return m.client.Region()
}

// ReconfigureRegion switches region and rebuilds the SES client atomically.
func (m *Mailer) ReconfigureRegion(ctx context.Context, region string) error {
	return m.client.ReconfigureRegion(ctx, region)
}

// FromAddress returns the default sender address.
func (m *Mailer) FromAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fromAddress
}

// SetFromAddress changes the default sender address.
func (m *Mailer) SetFromAddress(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fromAddress = address
}

// FromUser returns the default sender display name.
func (m *Mailer) FromUser() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fromUser
}

// SetFromUser changes the default sender display name.
func (m *Mailer) SetFromUser(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fromUser = user
}

// Source composes the sender as "user <address>", or the bare address when
// user is empty.
func Source(address, user string) string {
	if user == "" {
		return address
	}
	return user + " <" + address + ">"
}

func (m *Mailer) source(opts SendOptions) string {
	address, user := opts.FromAddress, opts.FromUser
	if address == "" {
		address = m.FromAddress()
	}
	if user == "" {
		user = m.FromUser()
	}
	return Source(address, user)
}

func (m *Mailer) messageBody(body string, plainText bool) *types.Body {
	if !plainText {
		return &types.Body{Html: &types.Content{Charset: aws.String(charset), Data: aws.String(body)}}
	}
	if !m.useTextBody {
		body = PlaceholderTextBody
	}
	return &types.Body{Text: &types.Content{Charset: aws.String(charset), Data: aws.String(body)}}
}

type sendOutcome struct {
	MessageID string          `json:"MessageId"`
	Metadata  facade.Metadata `json:"@metadata"`
}

// Send emails subject and body to the recipients and returns the SES message ID.
func (m *Mailer) Send(ctx context.Context, to []string, subject, body string, opts SendOptions) (string, error) {
	var isHTML any = audit.Unset
	if opts.PlainText {
		isHTML = false
	}
	ctx, call := m.Begin(ctx, opSend,
		to,
		subject,
		body,
		audit.SliceOrUnset(opts.ReplyTo),
		isHTML,
		audit.OrUnset(opts.FromAddress),
		audit.OrUnset(opts.FromUser),
	)

	in := &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Body:    m.messageBody(body, opts.PlainText),
			Subject: &types.Content{Charset: aws.String(charset), Data: aws.String(subject)},
		},
		Source: aws.String(m.source(opts)),
	}
	if len(opts.ReplyTo) > 0 {
		in.ReplyToAddresses = opts.ReplyTo
	}

	out, err := m.client.Client().SendEmail(ctx, in)
	if err != nil {
		return "", call.Fail(err)
	}

	id := aws.ToString(out.MessageId)
	return id, call.Succeed(sendOutcome{MessageID: id, Metadata: facade.ResponseMetadata(out.ResultMetadata)})
}
