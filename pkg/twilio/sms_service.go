package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrDisabled is returned by Send when no Twilio credentials were configured
var ErrDisabled = errors.New("twilio sms service is disabled")

// RateLimitError is returned when the local rate limiter held a message back; nothing was sent to Twilio
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "sms rate limit wait: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NotSent reports that the message never left this process
func (e *RateLimitError) NotSent() bool {
	return true
}

// LateResultFunc receives the outcome of a send whose caller stopped waiting
type LateResultFunc func(ctx context.Context, to, sid string, err error)

// MessageCreator is the part of the Twilio REST API used to send messages
type MessageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// SMSService sends text messages through Twilio's Messages API
type SMSService struct {
	messages MessageCreator
	from     string
	limiter  *rate.Limiter
	enabled  bool
	onLate   LateResultFunc
}

// NewSMSService creates a new Twilio SMS service.
// If accountSID or authToken is empty, the service will be disabled.
func NewSMSService(accountSID, authToken, from string, ratePerSecond float64, burst int) *SMSService {
	if accountSID == "" || authToken == "" {
		logger.Base().Warn("Twilio credentials not provided, SMS service disabled")
		return &SMSService{enabled: false}
	}

	restClient := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return NewSMSServiceWithCreator(restClient.Api, from, newLimiter(ratePerSecond, burst))
}

// NewSMSServiceWithCreator builds a service around an existing MessageCreator; limiter may be nil
func NewSMSServiceWithCreator(messages MessageCreator, from string, limiter *rate.Limiter) *SMSService {
	return &SMSService{
		messages: messages,
		from:     from,
		limiter:  limiter,
		enabled:  true,
		onLate:   logLateResult,
	}
}

func newLimiter(ratePerSecond float64, burst int) *rate.Limiter {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// IsEnabled returns whether the service is enabled
func (s *SMSService) IsEnabled() bool {
	return s.enabled
}

type sendResult struct {
	message *api.ApiV2010Message
	err     error
}

// Send delivers body to the given number and returns the message SID.
// Delivery is at-least-once: when ctx ends first the request to Twilio keeps running,
// its outcome goes to the late-result hook and the caller may send the message again.
func (s *SMSService) Send(ctx context.Context, to, body string) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", &RateLimitError{Err: err}
		}
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	done := make(chan sendResult, 1)
	go func() {
		message, err := s.messages.CreateMessage(params)
		done <- sendResult{message: message, err: err}
	}()

	var res sendResult
	select {
	case <-ctx.Done():
		go s.awaitLate(context.WithoutCancel(ctx), to, done)
		return "", ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		var restErr *client.TwilioRestError
		if errors.As(res.err, &restErr) && restErr.Message != "" {
			logger.Warn(ctx, "Twilio rejected message", zap.Int("code", restErr.Code), zap.Int("status", restErr.Status))
			return "", errors.New(restErr.Message)
		}
		return "", res.err
	}
	if res.message == nil || res.message.Sid == nil {
		return "", fmt.Errorf("twilio response missing message sid")
	}

	logger.Info(ctx, "SMS sent", zap.String("sid", *res.message.Sid))
	return *res.message.Sid, nil
}

func (s *SMSService) awaitLate(ctx context.Context, to string, done <-chan sendResult) {
	res := <-done
	if s.onLate == nil {
		return
	}
	sid := ""
	if res.err == nil && res.message != nil && res.message.Sid != nil {
		sid = *res.message.Sid
	}
	s.onLate(ctx, to, sid, res.err)
}

func logLateResult(ctx context.Context, to, sid string, err error) {
	if err != nil {
		logger.Warn(ctx, "SMS send failed after caller gave up", zap.Error(err))
		return
	}
	logger.Warn(ctx, "SMS delivered after caller gave up, a retry may duplicate it", zap.String("sid", sid))
}
