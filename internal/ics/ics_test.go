package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/calsync/internal/model"
)

func TestEncode(t *testing.T) {
	t.Parallel()
	start := time.Date(2020, 10, 21, 13, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{
		{ID: "1", Title: "Cumple de Fernando", Notes: "Comprar pastel", Start: start, End: start.Add(2 * time.Hour), User: &model.User{UID: "u1", Name: "Pepe"}},
		{Title: "draft, not exported", Start: start, End: start},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, events, start))
	out := buf.String()

	require.Contains(t, out, "BEGIN:VCALENDAR")
	require.Contains(t, out, "PRODID:"+productID)
	require.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	require.Contains(t, out, "UID:1@calsync")
	require.Contains(t, out, "SUMMARY:Cumple de Fernando")
	require.Contains(t, out, "DESCRIPTION:Comprar pastel")
	require.Contains(t, out, "DTSTART:20201021T130000Z")
	require.Contains(t, out, "DTEND:20201021T150000Z")
	require.Contains(t, out, "CN=Pepe")
	require.NotContains(t, out, "draft")
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	in := []model.CalendarEvent{
		{ID: "a", Title: "Standup", Notes: "daily", Start: start, End: start.Add(15 * time.Minute)},
		{ID: "b", Title: "Retro", Start: start.Add(24 * time.Hour), End: start.Add(25 * time.Hour)},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in, start))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range in {
		require.True(t, got[i].IsDraft())
		require.Equal(t, in[i].Title, got[i].Title)
		require.Equal(t, in[i].Notes, got[i].Notes)
		require.True(t, in[i].Start.Equal(got[i].Start))
		require.True(t, in[i].End.Equal(got[i].End))
	}
}

func TestDecode_DefaultsEndAndRejectsMissingStart(t *testing.T) {
	t.Parallel()
	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:x",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:Sin fin",
		"DTSTART:20240101T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	got, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].End.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))

	noStart := strings.Replace(doc, "DTSTART:20240101T100000Z\r\n", "", 1)
	_, err = Decode(strings.NewReader(noStart))
	require.Error(t, err)

	_, err = Decode(strings.NewReader("not ics"))
	require.Error(t, err)
}
