package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSNotifier texts lifecycle events to the administrator's phone through Twilio.
type SMSNotifier struct {
	api  messageCreator
	from string
	to   string
}

// NewSMSNotifier builds a notifier using Twilio account credentials.
func NewSMSNotifier(accountSID, authToken, from, to string) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSNotifier{api: client.Api, from: from, to: to}
}

func (n *SMSNotifier) Notify(_ context.Context, e Event) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(smsBody(e))
	if _, err := n.api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

func smsBody(e Event) string {
	name := e.Subject
	if name == "" {
		name = e.CompetitionID
	}
	if e.Kind == KindResultsPublished {
		return fmt.Sprintf("%s: results published, %d ranked", name, len(e.Leaderboard))
	}
	return fmt.Sprintf("%s: %s -> %s", name, e.From, e.To)
}
