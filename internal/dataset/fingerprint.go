package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// fingerprint hashes every field that can change a query answer.
func fingerprint(t *Tables) string {
	h := sha256.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	putString := func(s string) {
		putInt(len(s))
		h.Write([]byte(s))
	}

	putInt(len(t.Movies))
	for _, m := range t.Movies {
		putInt(m.ID)
		putString(m.Title)
		putString(m.RawGenres)
		putFloat(m.AvgRating)
		putString(m.IMDbID)
		putString(m.IMDbURL)
	}
	putInt(len(t.Ratings))
	for _, r := range t.Ratings {
		putInt(r.UserID)
		putInt(r.MovieID)
		putFloat(r.Rating)
	}
	putInt(len(t.Links))
	for _, l := range t.Links {
		putInt(l.MovieID)
		putString(l.IMDbID)
		putInt(l.TMDbID)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
