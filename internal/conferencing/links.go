package conferencing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-booking/internal/appointment"
)

const DefaultBaseURL = "https://meet.telehealth.local/room"

// LinkIssuer hands out placeholder join URIs of the form <base>/<room token>.
type LinkIssuer struct {
	base string
}

func NewLinkIssuer(base string) (*LinkIssuer, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid meeting base url %q", base)
	}
	return &LinkIssuer{base: strings.TrimRight(base, "/")}, nil
}

func (l *LinkIssuer) IssueLink(ctx context.Context, a *appointment.Appointment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.Type != appointment.TypeVideo {
		return "", fmt.Errorf("appointment %s is not a video consultation", a.ID)
	}
	return l.base + "/" + uuid.NewString(), nil
}
