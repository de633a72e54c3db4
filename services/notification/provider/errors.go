package provider

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"strings"
	"syscall"

	"lecturenotify/domain"
	"lecturenotify/pkg/vault"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	twclient "github.com/twilio/twilio-go/client"
	"go.mau.fi/whatsmeow"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// providerErr is classify for return sites typed as error, so a nil
// failure stays a nil interface.
func providerErr(ch domain.Channel, err error) error {
	if err == nil {
		return nil
	}
	return classify(ch, err)
}

// classify maps any provider failure onto the shared error categories.
// Transport failures are recognised first, then the channel-specific shapes.
func classify(ch domain.Channel, err error) *domain.ProviderError {
	if err == nil {
		return nil
	}

	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	var de *vault.DecryptionError
	if errors.As(err, &de) {
		return domain.NewProviderError(ch, domain.CategoryDecryption, err)
	}

	if cat, ok := transportCategory(err); ok {
		return domain.NewProviderError(ch, cat, err)
	}

	var cat domain.ErrorCategory
	switch ch {
	case domain.ChannelEmail:
		cat = smtpCategory(err)
	case domain.ChannelSMS:
		cat = smsCategory(err)
	case domain.ChannelPush:
		cat = pushCategory(err)
	case domain.ChannelCalendar:
		cat = googleCategory(err)
	default:
		cat = domain.CategoryUnknown
	}
	return domain.NewProviderError(ch, cat, err)
}

func transportCategory(err error) (domain.ErrorCategory, bool) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.CategoryConnectivity, true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return domain.CategoryConnectivity, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.CategoryConnectivity, true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.CategoryConnectivity, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CategoryConnectivity, true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return domain.CategoryConnectivity, true
	}
	return "", false
}

// smtpCategory reads the reply code. gomail does not wrap errors, so the
// message text is checked when no *textproto.Error is reachable.
func smtpCategory(err error) domain.ErrorCategory {
	code := 0
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		code = tpErr.Code
	} else {
		code = leadingReplyCode(err.Error())
	}

	switch {
	case code == 530 || code == 534 || code == 535 || code == 454:
		return domain.CategoryAuth
	case code == 550 || code == 553 || code == 501 || code == 551:
		return domain.CategoryInvalidRecipient
	case code >= 400 && code < 600:
		return domain.CategoryProviderServer
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "network is unreachable"):
		return domain.CategoryConnectivity
	case strings.Contains(msg, "auth"), strings.Contains(msg, "username and password"):
		return domain.CategoryAuth
	case strings.Contains(msg, "mail: "), strings.Contains(msg, "address"):
		return domain.CategoryInvalidRecipient
	}
	return domain.CategoryUnknown
}

func leadingReplyCode(msg string) int {
	for _, field := range strings.Fields(msg) {
		if len(field) < 3 {
			continue
		}
		code := 0
		ok := true
		for _, r := range field[:3] {
			if r < '0' || r > '9' {
				ok = false
				break
			}
			code = code*10 + int(r-'0')
		}
		if ok && (len(field) == 3 || field[3] == ' ' || field[3] == '-' || field[3] == '.') && code >= 200 && code < 600 {
			return code
		}
	}
	return 0
}

func smsCategory(err error) domain.ErrorCategory {
	var twErr *twclient.TwilioRestError
	if errors.As(err, &twErr) {
		switch twErr.Code {
		case 20003, 20005, 20404:
			return domain.CategoryAuth
		case 21211, 21212, 21408, 21610, 21612, 21614:
			return domain.CategoryInvalidRecipient
		}
		switch {
		case twErr.Status == 401 || twErr.Status == 403:
			return domain.CategoryAuth
		case twErr.Status == 429 || twErr.Status >= 500:
			return domain.CategoryProviderServer
		case twErr.Status == 400:
			return domain.CategoryInvalidRecipient
		}
		return domain.CategoryUnknown
	}

	switch {
	case errors.Is(err, whatsmeow.ErrNotLoggedIn):
		return domain.CategoryAuth
	case errors.Is(err, whatsmeow.ErrNotConnected):
		return domain.CategoryConnectivity
	}
	return domain.CategoryUnknown
}

func pushCategory(err error) domain.ErrorCategory {
	switch {
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err),
		errorutils.IsInvalidArgument(err), errorutils.IsNotFound(err):
		return domain.CategoryInvalidRecipient
	case messaging.IsThirdPartyAuthError(err), errorutils.IsUnauthenticated(err),
		errorutils.IsPermissionDenied(err):
		return domain.CategoryAuth
	case messaging.IsQuotaExceeded(err), errorutils.IsResourceExhausted(err),
		errorutils.IsUnavailable(err), errorutils.IsInternal(err):
		return domain.CategoryProviderServer
	}
	return googleCategory(err)
}

func googleCategory(err error) domain.ErrorCategory {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return domain.CategoryAuth
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == 401 || gErr.Code == 403:
			return domain.CategoryAuth
		case gErr.Code == 404 || gErr.Code == 400:
			return domain.CategoryInvalidRecipient
		case gErr.Code == 429 || gErr.Code >= 500:
			return domain.CategoryProviderServer
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "invalid_client") {
		return domain.CategoryAuth
	}
	return domain.CategoryUnknown
}
