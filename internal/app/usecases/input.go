package usecases

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrFatal marks a problem found before any remote call. The batch must not
// start.
var ErrFatal = errors.New("fatal pre-flight error")

func fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// Batch is one decoded input file. Raw keeps every item exactly as it was
// read so the output document can echo it back.
type Batch struct {
	Products []model.Product
	Raw      []json.RawMessage
	Invalid  map[int]string
}

func (b *Batch) Len() int {
	return len(b.Products)
}

// Valid reports whether the item at index passed load time validation.
func (b *Batch) Valid(index int) bool {
	_, bad := b.Invalid[index]
	return !bad
}

// ValidProducts returns the items that passed validation, in batch order.
func (b *Batch) ValidProducts() []model.Product {
	out := make([]model.Product, 0, len(b.Products))
	for i, p := range b.Products {
		if b.Valid(i) {
			out = append(out, p)
		}
	}
	return out
}

type batchEnvelope struct {
	Products []json.RawMessage `json:"products"`
}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fatalf("read input %s: %v", path, err)
	}
	return ParseBatch(data)
}

// ParseBatch accepts a JSON array of products or an object with a
// "products" array. Items that fail to decode or validate are kept and
// marked invalid; a batch with no valid item is fatal.
func ParseBatch(data []byte) (*Batch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fatalf("input is empty")
	}

	var raw []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fatalf("parse input: %v", err)
		}
	case '{':
		var env batchEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fatalf("parse input: %v", err)
		}
		if env.Products == nil {
			return nil, fatalf(`input object has no "products" array`)
		}
		raw = env.Products
	default:
		return nil, fatalf("input must be a JSON array or an object with a products array")
	}
	if len(raw) == 0 {
		return nil, fatalf("input contains no products")
	}

	validate := validator.New()
	batch := &Batch{
		Products: make([]model.Product, len(raw)),
		Raw:      raw,
		Invalid:  map[int]string{},
	}
	for i, item := range raw {
		var p model.Product
		if err := json.Unmarshal(item, &p); err != nil {
			batch.Invalid[i] = fmt.Sprintf("decode product: %v", err)
			continue
		}
		batch.Products[i] = p
		if err := validateProduct(validate, p); err != nil {
			batch.Invalid[i] = err.Error()
		}
	}

	if len(batch.Invalid) == len(raw) {
		first := batch.Invalid[0]
		return nil, fatalf("no valid products in input (first problem: %s)", first)
	}
	return batch, nil
}

func validateProduct(validate *validator.Validate, p model.Product) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid product: %s", describeFieldError(verrs[0]))
		}
		return fmt.Errorf("invalid product: %w", err)
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("invalid product: title is blank")
	}
	seen := make(map[string]struct{}, len(p.Variants))
	for i, v := range p.Variants {
		if v.Price.IsNegative() {
			return fmt.Errorf("invalid product: variant %d price is negative", i+1)
		}
		if v.CompareAtPrice != nil && v.CompareAtPrice.IsNegative() {
			return fmt.Errorf("invalid product: variant %d compare_at_price is negative", i+1)
		}
		key := strings.ToLower(strings.TrimSpace(v.SKU))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("invalid product: sku %s is used by more than one variant", v.SKU)
		}
		seen[key] = struct{}{}
	}
	return p.CheckOptionValues()
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Product.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s allows at most %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// URLPolicy restricts where product media may be fetched from.
type URLPolicy struct {
	AllowedHosts  []string
	AllowExternal bool
}

// URLIssue is one media reference outside the allowlist.
type URLIssue struct {
	Index int
	Title string
	Field string
	URL   string
}

var urlMetafieldTypes = map[string]struct{}{
	"url":            {},
	"file_reference": {},
}

func (p URLPolicy) allowed(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range p.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Issues lists image sources and url metafields hosted off the allowlist.
// Metafields holding a Shopify gid are references, not URLs.
func (p URLPolicy) Issues(batch *Batch) []URLIssue {
	var issues []URLIssue
	for i, product := range batch.Products {
		if !batch.Valid(i) {
			continue
		}
		for _, img := range product.Images {
			if !p.allowed(img.Src) {
				issues = append(issues, URLIssue{Index: i, Title: product.Title, Field: "images.src", URL: img.Src})
			}
		}
		check := func(field string, mfs []model.Metafield) {
			for _, mf := range mfs {
				if _, ok := urlMetafieldTypes[strings.ToLower(mf.Type)]; !ok {
					continue
				}
				value := strings.TrimSpace(string(mf.Value))
				if value == "" || strings.HasPrefix(value, "gid://") {
					continue
				}
				if !p.allowed(value) {
					issues = append(issues, URLIssue{Index: i, Title: product.Title, Field: field + "." + mf.Key, URL: value})
				}
			}
		}
		check("metafields", product.Metafields)
		for _, v := range product.Variants {
			check("variants.metafields", v.Metafields)
		}
	}
	return issues
}

var hashtagPattern = regexp.MustCompile(`#[A-Za-z0-9_-]+`)

// Preflight runs the checks that must pass before the first remote call.
// External URLs are fatal unless the policy allows them; alt text without
// filter hashtags is only reported.
func Preflight(batch *Batch, policy URLPolicy, logger logging.LoggerService) error {
	for index, reason := range batch.Invalid {
		logWarning(logger, fmt.Sprintf("item %d will be skipped: %s", index, reason))
	}

	issues := policy.Issues(batch)
	for _, issue := range issues {
		logWarning(logger, fmt.Sprintf("non-allowlisted url item=%d title=%s field=%s url=%s", issue.Index, issue.Title, issue.Field, issue.URL))
	}
	if len(issues) > 0 && !policy.AllowExternal {
		return fatalf("%d media url(s) are not hosted on an allowed host (first: %s); set ALLOW_EXTERNAL_URLS=true to upload anyway", len(issues), issues[0].URL)
	}

	missingTags := 0
	for i, product := range batch.Products {
		if !batch.Valid(i) {
			continue
		}
		for _, img := range product.Images {
			if strings.TrimSpace(img.Alt) != "" && !hashtagPattern.MatchString(img.Alt) {
				missingTags++
			}
		}
	}
	if missingTags > 0 {
		logWarning(logger, fmt.Sprintf("%d image alt text(s) carry no #filter hashtags", missingTags))
	}
	return nil
}

func logWarning(logger logging.LoggerService, message string) {
	if logger != nil {
		logger.LogWarning(message)
	}
}

func logInfo(logger logging.LoggerService, message string) {
	if logger != nil {
		logger.Log(message)
	}
}

func logSuccess(logger logging.LoggerService, message string) {
	if logger != nil {
		logger.LogSuccess(message)
	}
}

func logError(logger logging.LoggerService, message string, err error) {
	if logger != nil {
		logger.LogError(message, err)
	}
}
