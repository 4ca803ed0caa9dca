// Package calendarlink builds Google Calendar "add event" links from the loosely
// formatted dates and times a caller speaks to the voice assistant.
//
// Every function here is fail-soft: a malformed date degrades to a usable link
// and never aborts the SMS that carries it.
package calendarlink

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

const (
	// RenderURL is the Google Calendar template endpoint
	RenderURL = "https://calendar.google.com/calendar/render"
	// FallbackURL is returned when a link cannot be built
	FallbackURL = "https://calendar.google.com/calendar"

	compactLayout = "20060102T150405"
)

var (
	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"January 2 2006",
		"Jan 2 2006",
		"Monday January 2 2006",
		"Mon Jan 2 2006",
		"2 January 2006",
	}
	timeLayouts = []string{
		"3:04 PM",
		"3:04PM",
		"3 PM",
		"3PM",
		"15:04",
		"15:04:05",
	}

	ordinalSuffix = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// Event is the input of BuildLink
type Event struct {
	Title       string
	Description string
	Location    string
	StartDate   string
	StartTime   string
}

// Codec converts spoken dates into compact calendar timestamps
type Codec struct {
	// Now supplies the current time for the fallback timestamp
	Now func() time.Time
	// Location is the wall-clock zone used to interpret dates
	Location *time.Location
}

// New returns a Codec using the local clock and zone
func New() *Codec {
	return &Codec{Now: time.Now, Location: time.Local}
}

var defaultCodec = New()

// EncodeStart converts a date and time into YYYYMMDDTHHMM00 using the default codec
func EncodeStart(date, clock string) string {
	return defaultCodec.EncodeStart(date, clock)
}

// BuildLink builds an add-to-calendar URL using the default codec
func BuildLink(event Event) string {
	return defaultCodec.BuildLink(event)
}

// EncodeStart parses "<date> <time>" as a local wall-clock time and returns it as
// YYYYMMDDTHHMM00. Unparsable input yields tomorrow at 14:00 instead of an error.
func (c *Codec) EncodeStart(date, clock string) string {
	t, err := c.parse(date, clock)
	if err != nil {
		logger.Base().Warn("unrecognized appointment date, using fallback",
			zap.String("date", date),
			zap.String("time", clock),
			zap.Error(err))
		return c.fallback()
	}
	return fmt.Sprintf("%04d%02d%02dT%02d%02d00", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

func (c *Codec) parse(date, clock string) (time.Time, error) {
	d := normalize(date)
	tm := strings.ToUpper(normalize(clock))
	loc := c.location()

	for _, dl := range dateLayouts {
		if tm == "" {
			if t, err := time.ParseInLocation(dl, d, loc); err == nil {
				return t, nil
			}
			continue
		}
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, d+" "+tm, loc); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time format: %q %q", date, clock)
}

func (c *Codec) fallback() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	tomorrow := now().In(c.location()).AddDate(0, 0, 1)
	return fmt.Sprintf("%04d%02d%02dT140000", tomorrow.Year(), int(tomorrow.Month()), tomorrow.Day())
}

func (c *Codec) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// AddOneHour adds sixty wall-clock minutes to a compact timestamp, carrying into the
// next day, month or year as needed. Input it cannot parse is returned unchanged.
func AddOneHour(ts string) string {
	if len(ts) < 13 || ts[8] != 'T' {
		return ts
	}
	fields := []string{ts[0:4], ts[4:6], ts[6:8], ts[9:11], ts[11:13]}
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return ts
		}
		nums[i] = n
	}

	// UTC has no DST gaps, so this is pure calendar arithmetic
	t := time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], 0, 0, time.UTC)
	return t.Add(time.Hour).Format(compactLayout[:13]) + "00"
}

// BuildLink returns a Google Calendar template URL for the event, or FallbackURL if
// anything goes wrong while building it.
func (c *Codec) BuildLink(event Event) (link string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error("failed to build calendar link", zap.Any("panic", r))
			link = FallbackURL
		}
	}()

	start := c.EncodeStart(event.StartDate, event.StartTime)
	end := AddOneHour(start)

	base, err := url.Parse(RenderURL)
	if err != nil {
		return FallbackURL
	}

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", event.Title)
	params.Set("dates", start+"/"+end)
	params.Set("details", event.Description)
	params.Set("location", event.Location)
	params.Set("trp", "false")
	base.RawQuery = params.Encode()

	return base.String()
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
