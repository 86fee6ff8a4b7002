// Package ics converts calendar events to and from iCalendar documents.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/and161185/calsync/internal/model"
)

const (
	productID = "-//calsync//Calendar Export//ES"
	uidSuffix = "@calsync"
)

// Encode writes events as one VCALENDAR with a VEVENT per event. Drafts are skipped.
func Encode(w io.Writer, events []model.CalendarEvent, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range events {
		if ev.IsDraft() {
			continue
		}
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, ev.ID+uidSuffix)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		vevent.Props.SetText(ical.PropSummary, ev.Title)
		if ev.Notes != "" {
			vevent.Props.SetText(ical.PropDescription, ev.Notes)
		}
		vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
		if !ev.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
		}
		if ev.User != nil && ev.User.Name != "" {
			org := ical.NewProp(ical.PropOrganizer)
			org.Value = "urn:calsync:user:" + ev.User.UID
			org.Params.Set(ical.ParamCommonName, ev.User.Name)
			vevent.Props.Set(org)
		}
		cal.Children = append(cal.Children, vevent.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode ics: %w", err)
	}
	return nil
}

// Decode reads every VEVENT of the document as a draft. Ids are never imported:
// the server assigns them when the drafts are saved.
func Decode(r io.Reader) ([]model.CalendarEvent, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode ics: %w", err)
	}

	var out []model.CalendarEvent
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		var ev model.CalendarEvent
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			ev.Title = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			ev.Notes = prop.Value
		}
		prop := comp.Props.Get(ical.PropDateTimeStart)
		if prop == nil {
			return nil, fmt.Errorf("decode ics: event %q without DTSTART", ev.Title)
		}
		if ev.Start, err = prop.DateTime(time.UTC); err != nil {
			return nil, fmt.Errorf("decode ics: DTSTART: %w", err)
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if ev.End, err = prop.DateTime(time.UTC); err != nil {
				return nil, fmt.Errorf("decode ics: DTEND: %w", err)
			}
		} else {
			ev.End = ev.Start.Add(time.Hour)
		}
		ev.Title = strings.TrimSpace(ev.Title)
		out = append(out, ev)
	}
	return out, nil
}
