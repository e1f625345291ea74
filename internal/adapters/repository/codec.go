package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/trustmatch/internal/domain/fraud"
	"github.com/okian/trustmatch/internal/domain/trust"
)

// Both backends keep JSON documents so a value read back never aliases the
// caller's maps and slices, and both return the same shapes.

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

func decode[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidArgument, kind)
	}
	return nil
}

func validateResult(r trust.Result) error {
	if err := requireID("subject id", r.Score.SubjectID); err != nil {
		return err
	}
	if r.History.SubjectID != r.Score.SubjectID {
		return fmt.Errorf("%w: history for %q saved with score for %q", ErrInvalidArgument, r.History.SubjectID, r.Score.SubjectID)
	}
	return nil
}

func validateAlert(a fraud.Alert) error {
	if err := requireID("alert id", a.ID); err != nil {
		return err
	}
	return requireID("subject id", a.SubjectID)
}
