// -----------------------------------------------------------------------------
// Version Stamp Rendering
// -----------------------------------------------------------------------------
//
// Package stamp holds the build facts collected for one invocation and
// renders them as C preprocessor macro definitions. Rendering is pure: the
// same facts and timestamp always produce the same bytes.
//
// Output Format (prefix "TBB"):
//
//	#define __TBB_VERSION_STRINGS(N) \
//	#N ": BUILD_HOST\t\tbuildbox" ENDL \
//	#N ": BUILD_COMMAND\tmake" ENDL
//	#define __TBB_DATETIME "Mon, 04 Jun 2007 10:16:07 GMT"
//	#define __TBB_VERSION_YMD 2007, 0604
//
// The "\t" sequences are literal backslash-t escapes, expanded by the C
// compiler when the macro is used.
//
// -----------------------------------------------------------------------------

package stamp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// -----------------------------------------------------------------------------
// Fact Keys
// -----------------------------------------------------------------------------

const (
	KeyHost     = "BUILD_HOST"
	KeyOS       = "BUILD_OS"
	KeyCL       = "BUILD_CL"
	KeyGCC      = "BUILD_GCC"
	KeyClang    = "BUILD_CLANG"
	KeyCompiler = "BUILD_COMPILER"
	KeyTarget   = "BUILD_TARGET"
	KeyCommand  = "BUILD_COMMAND"
)

const (
	// SepShort and SepLong are the escaped tab runs placed between a key and
	// its value.
	SepShort = `\t`
	SepLong  = `\t\t`

	// longKeyLen is the key length from which a single tab keeps the values
	// aligned.
	longKeyLen = 11
)

// DateTimeLayout matches the RFC 1123 form with a literal GMT zone.
const DateTimeLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// DefaultPrefix is the macro prefix used when none is configured.
const DefaultPrefix = "TBB"

// -----------------------------------------------------------------------------
// Type Definitions
// -----------------------------------------------------------------------------

// Fact is one BUILD_* key/value pair. Sep overrides the separator derived
// from the key length when set.
type Fact struct {
	Key   string
	Value string
	Sep   string
}

// Separator returns the escaped tab run written between key and value.
func (f Fact) Separator() string {
	if f.Sep != "" {
		return f.Sep
	}
	if len(f.Key) >= longKeyLen {
		return SepShort
	}
	return SepLong
}

// Stamp is the full set of facts for one build plus the time it was taken.
type Stamp struct {
	Prefix      string
	Facts       []Fact
	Time        time.Time
	Fingerprint bool
}

// New returns a stamp with the given prefix and timestamp.
func New(prefix string, t time.Time) *Stamp {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Stamp{Prefix: prefix, Time: t}
}

// Add appends facts in order.
func (s *Stamp) Add(facts ...Fact) {
	s.Facts = append(s.Facts, facts...)
}

// Lookup returns the value of the first fact with the given key.
func (s *Stamp) Lookup(key string) (string, bool) {
	for _, f := range s.Facts {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

// Render writes the macro definitions to w.
func (s *Stamp) Render(w io.Writer) error {
	var buf bytes.Buffer

	head := fmt.Sprintf("#define __%s_VERSION_STRINGS(N)", s.Prefix)
	if len(s.Facts) == 0 {
		buf.WriteString(head + "\n")
	} else {
		buf.WriteString(head + " \\\n")
	}

	for i, f := range s.Facts {
		fmt.Fprintf(&buf, "#N \": %s%s%s\" ENDL", f.Key, f.Separator(), Escape(f.Value))
		if i < len(s.Facts)-1 {
			buf.WriteString(" \\")
		}
		buf.WriteByte('\n')
	}

	fmt.Fprintf(&buf, "#define __%s_DATETIME \"%s\"\n", s.Prefix, DateTime(s.Time))
	fmt.Fprintf(&buf, "#define __%s_VERSION_YMD %s\n", s.Prefix, YMD(s.Time))

	if s.Fingerprint {
		fmt.Fprintf(&buf, "#define __%s_VERSION_FINGERPRINT \"%s\"\n", s.Prefix, s.Digest())
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// String renders the stamp into a string.
func (s *Stamp) String() string {
	var sb strings.Builder
	_ = s.Render(&sb)
	return sb.String()
}

// Digest returns the hex BLAKE2b-256 digest of the facts. The timestamp is
// excluded so identical toolchains produce identical digests.
func (s *Stamp) Digest() string {
	var buf bytes.Buffer
	for _, f := range s.Facts {
		buf.WriteString(f.Key)
		buf.WriteByte('=')
		buf.WriteString(clean(f.Value))
		buf.WriteByte('\n')
	}
	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// -----------------------------------------------------------------------------
// Formatting Helpers
// -----------------------------------------------------------------------------

// DateTime formats t in UTC, e.g. "Mon, 04 Jun 2007 10:16:07 GMT".
func DateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// YMD formats t in UTC as "YYYY, MMDD" with zero-padded month and day.
func YMD(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d, %02d%02d", u.Year(), int(u.Month()), u.Day())
}

// Escape makes v safe inside a C string literal. Trailing whitespace is
// trimmed, tabs become spaces and other control characters are dropped.
func Escape(v string) string {
	v = clean(v)
	var sb strings.Builder
	sb.Grow(len(v))
	for _, r := range v {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func clean(v string) string {
	v = strings.TrimRightFunc(v, unicode.IsSpace)
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
}
