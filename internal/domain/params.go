package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultCompressionQuality is used when a compress job carries no quality
const DefaultCompressionQuality = 0.5

var validate = validator.New(validator.WithRequiredStructEnabled())

// SplitType selects how a split job divides its input
type SplitType string

const (
	SplitPages    SplitType = "pages"
	SplitInterval SplitType = "interval"
	SplitAll      SplitType = "all"
)

// ProtectAction selects whether a protect job adds or removes encryption
type ProtectAction string

const (
	ProtectAdd    ProtectAction = "ADD"
	ProtectRemove ProtectAction = "REMOVE"
)

// CompressParams holds compression settings
type CompressParams struct {
	Quality float64 `json:"quality" validate:"gte=0,lte=1"`
}

// SplitParams holds split settings
type SplitParams struct {
	Type     SplitType `json:"type" validate:"required,oneof=pages interval all"`
	Ranges   string    `json:"ranges,omitempty" validate:"required_if=Type pages"`
	Interval int       `json:"interval,omitempty" validate:"required_if=Type interval,gte=0"`
}

// ProtectParams holds encryption settings.
// ADD uses the user/owner passwords and permission flags, REMOVE uses Password.
type ProtectParams struct {
	Action            ProtectAction `json:"action" validate:"required,oneof=ADD REMOVE"`
	UserPassword      string        `json:"user_password,omitempty"`
	OwnerPassword     string        `json:"owner_password,omitempty"`
	Password          string        `json:"password,omitempty" validate:"required_if=Action REMOVE"`
	AllowPrinting     bool          `json:"allow_printing"`
	AllowCopying      bool          `json:"allow_copying"`
	AllowModification bool          `json:"allow_modification"`
	AllowAssembly     bool          `json:"allow_assembly"`
}

// EffectiveOwnerPassword falls back to the user password with an "_owner" suffix
func (p *ProtectParams) EffectiveOwnerPassword() string {
	if p.OwnerPassword != "" {
		return p.OwnerPassword
	}
	return p.UserPassword + "_owner"
}

// Params is the per-operation parameter set of a job.
// At most the member matching the job's operation is set.
type Params struct {
	Compress *CompressParams `json:"compress,omitempty"`
	Split    *SplitParams    `json:"split,omitempty"`
	Protect  *ProtectParams  `json:"protect,omitempty"`
}

// CompressionQuality returns the job quality or def when none was given
func (p Params) CompressionQuality(def float64) float64 {
	if p.Compress == nil {
		return def
	}
	return p.Compress.Quality
}

// ValidateFor checks that p carries only the parameters op uses and that they are well formed
func (p Params) ValidateFor(op Operation) error {
	switch op {
	case OperationCompress:
		if p.Split != nil || p.Protect != nil {
			return paramsError("compress jobs accept only compression parameters")
		}
		if p.Compress == nil {
			return nil
		}
		return validateStruct(p.Compress)

	case OperationSplit:
		if p.Compress != nil || p.Protect != nil {
			return paramsError("split jobs accept only split parameters")
		}
		if p.Split == nil {
			return paramsError("split parameters are required")
		}
		if err := validateStruct(p.Split); err != nil {
			return err
		}
		if p.Split.Type == SplitPages {
			if _, err := ParsePageRanges(p.Split.Ranges); err != nil {
				return err
			}
		}
		return nil

	case OperationProtect:
		if p.Compress != nil || p.Split != nil {
			return paramsError("protect jobs accept only protection parameters")
		}
		if p.Protect == nil {
			return paramsError("protection parameters are required")
		}
		return validateStruct(p.Protect)

	case OperationMerge, OperationPDFToWord:
		if p.Compress != nil || p.Split != nil || p.Protect != nil {
			return paramsError(fmt.Sprintf("%s jobs take no parameters", op))
		}
		return nil
	}

	return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

func paramsError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, msg)
}

// PageRange is an inclusive, 1-based page interval
type PageRange struct {
	From int
	To   int
}

// ParsePageRanges parses a selection such as "1-3,5,7-9"
func ParsePageRanges(selection string) ([]PageRange, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return nil, paramsError("page ranges are empty")
	}

	var ranges []PageRange
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, paramsError(fmt.Sprintf("empty range in %q", selection))
		}

		from, to, isRange := strings.Cut(part, "-")
		start, err := parsePageNumber(from)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parsePageNumber(to); err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, paramsError(fmt.Sprintf("range %q ends before it starts", part))
		}

		ranges = append(ranges, PageRange{From: start, To: end})
	}

	return ranges, nil
}

func parsePageNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, paramsError(fmt.Sprintf("invalid page number %q", raw))
	}
	return n, nil
}
