// Package smtpprobe determines whether an address can receive mail by
// speaking to its domain's MX directly: MAIL FROM and RCPT TO only,
// never DATA. A 2xx RCPT reply is the sole signal of deliverability.
package smtpprobe

import (
	"context"
	"math/rand/v2"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// SenderAddress is the envelope sender for every probe. Some MXes
	// reject it; isolated here so a fork can swap it in one place.
	SenderAddress = "random.guy@fit.com"

	// heloName is the client identity announced in EHLO/HELO.
	heloName = "verywellfit.com"

	smtpPort    = "25"
	dialTimeout = 10 * time.Second
)

// Prober checks deliverability of addresses and catch-all status of
// domains.
type Prober interface {
	Probe(ctx context.Context, email string) (bool, error)
	ProbeCatchAll(ctx context.Context, domain string) (bool, error)
}

// Option configures the prober.
type Option func(*mxProber)

// WithResolverConfig points MX lookups at a specific resolv.conf path.
func WithResolverConfig(path string) Option {
	return func(p *mxProber) { p.resolvConf = path }
}

// WithPortOverride redirects SMTP connections to a non-standard port
// (tests).
func WithPortOverride(port string) Option {
	return func(p *mxProber) { p.port = port }
}

// WithStaticExchange bypasses MX resolution entirely (tests).
func WithStaticExchange(host string) Option {
	return func(p *mxProber) { p.staticExchange = host }
}

type mxProber struct {
	resolvConf     string
	port           string
	staticExchange string
}

// New creates a prober using the system resolver configuration.
func New(opts ...Option) Prober {
	p := &mxProber{
		resolvConf: "/etc/resolv.conf",
		port:       smtpPort,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe reports whether the MX for the address's domain accepts RCPT TO
// for it. Resolution, connect, and protocol failures all read as
// undeliverable; the address stays eligible for a later re-run.
func (p *mxProber) Probe(ctx context.Context, email string) (bool, error) {
	_, domain, found := strings.Cut(email, "@")
	if !found || domain == "" {
		return false, eris.Errorf("smtpprobe: malformed address %q", email)
	}

	exchange, err := p.firstExchange(ctx, domain)
	if err != nil {
		return false, err
	}

	return p.rcptAccepted(ctx, exchange, email)
}

// ProbeCatchAll sends RCPT TO for a random local-part. Acceptance means
// the domain takes all local-parts and per-address verification there is
// unreliable.
func (p *mxProber) ProbeCatchAll(ctx context.Context, domain string) (bool, error) {
	return p.Probe(ctx, randomLocalPart()+"@"+domain)
}

// firstExchange returns the first MX host the resolver handed back, with
// its trailing dot stripped. The answers are not sorted by preference,
// so a lower-priority exchange is probed whenever the resolver lists it
// first.
func (p *mxProber) firstExchange(ctx context.Context, domain string) (string, error) {
	if p.staticExchange != "" {
		return p.staticExchange, nil
	}

	conf, err := dns.ClientConfigFromFile(p.resolvConf)
	if err != nil {
		return "", eris.Wrap(err, "smtpprobe: load resolver config")
	}
	if len(conf.Servers) == 0 {
		return "", eris.New("smtpprobe: no resolvers configured")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)

	client := &dns.Client{Timeout: dialTimeout}
	reply, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(conf.Servers[0], conf.Port))
	if err != nil {
		return "", eris.Wrapf(err, "smtpprobe: mx lookup %s", domain)
	}

	for _, rr := range reply.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			return strings.TrimSuffix(mx.Mx, "."), nil
		}
	}
	return "", eris.Errorf("smtpprobe: no mx records for %s", domain)
}

// rcptAccepted runs the minimal SMTP dialog. The connection is closed
// without QUIT; only the RCPT reply matters.
func (p *mxProber) rcptAccepted(ctx context.Context, exchange, email string) (bool, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(exchange, p.port))
	if err != nil {
		return false, eris.Wrapf(err, "smtpprobe: dial %s", exchange)
	}
	defer conn.Close() //nolint:errcheck

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	}

	client, err := smtp.NewClient(conn, exchange)
	if err != nil {
		return false, eris.Wrap(err, "smtpprobe: smtp handshake")
	}
	defer client.Close() //nolint:errcheck

	if err := client.Hello(heloName); err != nil {
		return false, eris.Wrap(err, "smtpprobe: hello")
	}
	if err := client.Mail(SenderAddress); err != nil {
		return false, eris.Wrap(err, "smtpprobe: mail from")
	}
	if err := client.Rcpt(email); err != nil {
		// A non-2xx RCPT reply surfaces as an error from the client;
		// that is the legitimate negative, not a transport failure.
		zap.L().Debug("rcpt rejected",
			zap.String("email", email),
			zap.String("exchange", exchange),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomLocalPart builds a 16-character local-part that no real mailbox
// plausibly uses.
func randomLocalPart() string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		b.WriteByte(localPartAlphabet[rand.IntN(len(localPartAlphabet))])
	}
	return b.String()
}
