package metadata

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Provider hands out a session id and launch time shared by every resource
// created by this process.
type Provider struct {
	once          sync.Once
	sessionID     string
	launchTime    int64
	formattedTime string
}

var globalProvider = &Provider{}

// GetProvider returns the global shared metadata provider instance.
func GetProvider() *Provider {
	return globalProvider
}

func (p *Provider) SessionID() string {
	p.once.Do(p.initialize)
	return p.sessionID
}

func (p *Provider) FormattedLaunchTime() string {
	p.once.Do(p.initialize)
	return p.formattedTime
}

func (p *Provider) initialize() {
	p.sessionID = uuid.New().String()
	p.launchTime = time.Now().UnixNano()
	p.formattedTime = time.Unix(0, p.launchTime).Format(time.RFC3339Nano)
}

// Reset resets the global provider state - only for testing purposes.
func Reset() {
	globalProvider = &Provider{}
}
