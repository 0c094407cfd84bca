package domain

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// DateLayout is the calendar date format of rental dates.
const DateLayout = "2006-01-02"

// RefID is a numeric reference to another record. Older documents store references as strings, so both "3" and 3
// decode; it always encodes as a number.
type RefID int64

// UnmarshalJSONFrom implements json.UnmarshalerFrom.
func (r *RefID) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	var raw string
	switch tok.Kind() {
	case '0':
		raw = tok.String()
	case '"':
		raw = tok.String()
	default:
		return fmt.Errorf("reference must be a number, got %s", tok.Kind())
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*r = RefID(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("reference %q is not an integer", raw)
	}
	*r = RefID(f)
	return nil
}

// MarshalJSONTo implements json.MarshalerTo.
func (r RefID) MarshalJSONTo(enc *jsontext.Encoder) error {
	return enc.WriteToken(jsontext.Int(int64(r)))
}

// String returns the record id form of the reference.
func (r RefID) String() string {
	return strconv.FormatInt(int64(r), 10)
}

var (
	_ json.UnmarshalerFrom = (*RefID)(nil)
	_ json.MarshalerTo     = RefID(0)
)

// Rental is a loan of one or more books to a user, in the alquileres collection.
type Rental struct {
	ID          string  `json:"id,omitzero"`
	UsuarioID   RefID   `json:"usuarioId" validate:"required,gt=0"`
	LibrosIDs   []RefID `json:"librosIds" validate:"required,min=1,unique,dive,gt=0"`
	FechaInicio string  `json:"fechaInicio" validate:"required,isodate"`
	FechaFin    string  `json:"fechaFin" validate:"required,isodate"`
	Estado      bool    `json:"estado"`
}

// BookIDs returns the referenced book ids in record id form.
func (r *Rental) BookIDs() []string {
	ids := make([]string, len(r.LibrosIDs))
	for i, id := range r.LibrosIDs {
		ids[i] = id.String()
	}
	return ids
}

// HasBook reports whether the rental references the book.
func (r *Rental) HasBook(bookID string) bool {
	return slices.Contains(r.BookIDs(), bookID)
}

// OwnedBy reports whether the rental belongs to the user.
func (r *Rental) OwnedBy(userID string) bool {
	return r.UsuarioID.String() == userID
}

// CheckDates reports an error when fechaFin precedes fechaInicio. Both dates must already be valid.
func (r *Rental) CheckDates() error {
	start, err := ParseDate(r.FechaInicio)
	if err != nil {
		return err
	}
	end, err := ParseDate(r.FechaFin)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("fechaFin %s is before fechaInicio %s", r.FechaFin, r.FechaInicio)
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays moves a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}
