// -----------------------------------------------------------------------
// Filter Service - pre-extraction relevance gate and instrument policy
// -----------------------------------------------------------------------

package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

const (
	marketOpenMinutes  = 9*60 + 30
	marketCloseMinutes = 16 * 60
)

// Service decides which items are worth sending to the extractor and
// which instruments may be posted.
type Service struct {
	config      *common.FilterConfig
	instruments *common.InstrumentMap
	location    *time.Location
	keywords    []string
	logger      arbor.ILogger

	// now is swapped in tests
	now func() time.Time
}

// NewService creates the filter from config, loading the instrument
// mapping file when one is configured.
func NewService(config *common.FilterConfig, logger arbor.ILogger) (*Service, error) {
	tz := config.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid filter timezone '%s': %w", tz, err)
	}

	instruments, err := common.LoadInstrumentMap(config.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument mapping: %w", err)
	}
	for _, code := range config.Blacklist {
		instruments.Blacklist = append(instruments.Blacklist, strings.ToUpper(strings.TrimSpace(code)))
	}

	keywords := make([]string, 0, len(config.Keywords))
	for _, kw := range config.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	logger.Debug().
		Str("timezone", tz).
		Int("keywords", len(keywords)).
		Int("blacklist", len(instruments.Blacklist)).
		Msg("Filter service initialized")

	return &Service{
		config:      config,
		instruments: instruments,
		location:    location,
		keywords:    keywords,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// CheckItem reports whether an item passes the pre-extraction gate. The
// reason names the failed check for the seen-set record.
func (s *Service) CheckItem(item models.RawItem) (bool, string) {
	title := strings.TrimSpace(item.Title)

	if min := s.config.MinTitleLength; min > 0 && len(title) < min {
		return false, fmt.Sprintf("title shorter than %d characters", min)
	}

	if len(s.keywords) > 0 && !s.matchesKeyword(item.Text()) {
		return false, "no matching keyword"
	}

	if s.config.MarketHoursOnly && !s.InMarketHours(s.now()) {
		return false, "outside market hours"
	}

	return true, ""
}

// InMarketHours reports whether the exchange is open at the given time:
// weekdays 09:30-16:00 in the configured timezone.
func (s *Service) InMarketHours(t time.Time) bool {
	local := t.In(s.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= marketOpenMinutes && minutes < marketCloseMinutes
}

// ResolveInstrument maps the model's instrument text onto a postable
// ticker. Returns false for blacklisted or unrecognizable instruments.
func (s *Service) ResolveInstrument(raw string) (common.Instrument, bool) {
	return s.instruments.Normalize(raw)
}

// SearchExchanges returns the exchange prefixes tried when resolving a
// bare ticker against the chart site.
func (s *Service) SearchExchanges() []string {
	return s.instruments.SearchExchanges()
}

func (s *Service) matchesKeyword(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
