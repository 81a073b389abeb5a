package clock

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchoolClockIgnoresLocal(t *testing.T) {
	instant := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC) // 14:30 WIB
	NowFunc = func() time.Time { return instant }
	defer func() { NowFunc = time.Now }()

	origLocal := time.Local
	defer func() { time.Local = origLocal }()

	var got []time.Time
	for _, loc := range []*time.Location{time.UTC, time.FixedZone("EST", -5*3600), time.FixedZone("JST", 9*3600)} {
		time.Local = loc
		got = append(got, SchoolClock{}.Now())
	}

	for _, now := range got {
		assert.Equal(t, "WIB", now.Location().String())
		assert.Equal(t, 14, now.Hour())
		assert.Equal(t, 30, now.Minute())
		assert.True(t, now.Equal(instant))
	}
}

func TestFuncConvertsToWIB(t *testing.T) {
	c := Func(func() time.Time { return time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC) })
	now := c.Now()
	assert.Equal(t, 3, now.Hour())
	assert.Equal(t, MustParseDate("2024-03-02"), Today(c)) // already the next day in WIB
}

func TestDateOf(t *testing.T) {
	tests := []struct {
		name    string
		instant time.Time
		want    string
	}{
		{name: "utc evening is next WIB day", instant: time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC), want: "2025-01-01"},
		{name: "utc just before WIB midnight", instant: time.Date(2024, 12, 31, 16, 59, 59, 0, time.UTC), want: "2024-12-31"},
		{name: "already WIB", instant: At(2024, 2, 29, 23, 59, 59), want: "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DateOf(tt.instant).String(); got != tt.want {
				t.Errorf("DateOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateOrdering(t *testing.T) {
	d := MustParseDate("2024-02-28")
	next := d.AddDays(1)

	assert.Equal(t, "2024-02-29", next.String())
	assert.True(t, d.Before(next))
	assert.True(t, next.After(d))
	assert.False(t, d.After(d))
	assert.True(t, d.Equal(MustParseDate("2024-02-28")))
	assert.Equal(t, At(2024, 2, 28, 8, 0, 0), d.At(ClockTime(8, 0, 0)))
}

func TestDateJSON(t *testing.T) {
	type payload struct {
		Date Date `json:"date"`
	}

	b, err := json.Marshal(payload{Date: MustParseDate("2024-05-06")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-05-06"}`, string(b))

	b, err = json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":null}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-05-06"}`), &p))
	assert.Equal(t, Date{Year: 2024, Month: time.May, Day: 6}, p.Date)

	p = payload{}
	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &p))
	assert.True(t, p.Date.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"date":"06/05/2024"}`), &p))
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    Date
		wantErr bool
	}{
		{name: "driver time at utc midnight", src: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), want: MustParseDate("2024-05-06")},
		{name: "bytes", src: []byte("2024-05-06"), want: MustParseDate("2024-05-06")},
		{name: "timestamp string", src: "2024-05-06T00:00:00Z", want: MustParseDate("2024-05-06")},
		{name: "nil", src: nil, want: Date{}},
		{name: "unsupported", src: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := d.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d != tt.want {
				t.Errorf("Scan() = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestTimeOfDay(t *testing.T) {
	instant := time.Date(2024, 5, 6, 1, 2, 3, 500, time.UTC)
	tod := TimeOf(instant)

	assert.Equal(t, 8, tod.Hour())
	assert.Equal(t, 2, tod.Minute())
	assert.Equal(t, 3, tod.Second())
	assert.Equal(t, "08:02:03", tod.String())
	assert.Equal(t, 1, tod.Compare(ClockTime(8, 2, 3)))
	assert.True(t, ClockTime(7, 59, 59).Before(ClockTime(8, 0, 0)))

	v, err := tod.Value()
	require.NoError(t, err)
	assert.Equal(t, "08:02:03.000000500", v)

	var scanned TimeOfDay
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, tod, scanned)

	require.NoError(t, scanned.Scan(time.Date(0, 1, 1, 14, 59, 59, 0, time.UTC)))
	assert.Equal(t, ClockTime(14, 59, 59), scanned)

	b, err := json.Marshal(ClockTime(15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, `"15:00:00"`, string(b))
}
