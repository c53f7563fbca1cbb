package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go/errors"
)

const bytesUnit = "bytes"

// ParseRange interprets a Range header value against a resource of total
// bytes. Only a single range of the "bytes" unit is supported; an end past
// the resource is clamped to its last byte.
func ParseRange(value string, total int64) (ByteRange, error) {
	unit, spec, found := strings.Cut(strings.TrimSpace(value), "=")
	if !found {
		return ByteRange{}, errors.NewRangeError(
			errors.RangeErrorMalformed,
			fmt.Sprintf("missing '=' in %q", value),
		)
	}

	if !strings.EqualFold(strings.TrimSpace(unit), bytesUnit) {
		return ByteRange{}, errors.NewRangeError(
			errors.RangeErrorUnsupportedUnit,
			fmt.Sprintf("unit %q", unit),
		)
	}

	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, ",") {
		return ByteRange{}, errors.NewRangeError(
			errors.RangeErrorMalformed,
			"multiple ranges are not supported",
		)
	}

	first, last, found := strings.Cut(spec, "-")
	if !found {
		return ByteRange{}, errors.NewRangeError(
			errors.RangeErrorMalformed,
			fmt.Sprintf("missing '-' in %q", spec),
		)
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	switch {
	case first == "" && last == "":
		return ByteRange{}, errors.NewRangeError(errors.RangeErrorMalformed, "both bounds missing")

	case first == "":
		suffix, err := parseBound(last)
		if err != nil {
			return ByteRange{}, err
		}
		if suffix == 0 || total == 0 {
			return ByteRange{}, notSatisfiable(total)
		}
		return ByteRange{Start: max(0, total-suffix), End: total - 1, Total: total}, nil

	default:
		start, err := parseBound(first)
		if err != nil {
			return ByteRange{}, err
		}

		end := total - 1
		if last != "" {
			if end, err = parseBound(last); err != nil {
				return ByteRange{}, err
			}
		}

		if start >= total || start > end {
			return ByteRange{}, notSatisfiable(total)
		}

		return ByteRange{Start: start, End: min(end, total-1), Total: total}, nil
	}
}

// parseBound accepts only plain decimal digits; strconv alone would also
// take signs.
func parseBound(s string) (int64, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.NewRangeError(
				errors.RangeErrorMalformed,
				fmt.Sprintf("non-numeric bound %q", s),
			)
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &errors.HttpError{
			Type:          errors.ErrorRange,
			RangeErr:      errors.RangeErrorMalformed,
			Message:       fmt.Sprintf("bound %q", s),
			UnderlyingErr: err,
		}
	}
	return n, nil
}

func notSatisfiable(total int64) error {
	return errors.NewRangeError(
		errors.RangeErrorNotSatisfiable,
		fmt.Sprintf("resource length is %d", total),
	)
}

// ContentRange formats the Content-Range value of a partial response.
func ContentRange(r ByteRange) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// UnsatisfiedContentRange formats the Content-Range value of a 416 response.
func UnsatisfiedContentRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}
