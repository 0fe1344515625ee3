package models

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/patrickwarner/mediahub/internal/formats"
)

// ErrNotFound is returned when a publication, newsletter or ad does not exist.
var ErrNotFound = errors.New("not found")

// Publication is a publisher's media property as stored in the publications
// collection. Only the fields this service reads or writes are mapped.
type Publication struct {
	ID            primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	PublicationID int                  `json:"publicationId" bson:"publicationId"`
	BasicInfo     BasicInfo            `json:"basicInfo" bson:"basicInfo"`
	Channels      DistributionChannels `json:"distributionChannels" bson:"distributionChannels"`

	// LoadErr is set by stores that return a document they could not decode.
	// Only ID and name are filled in then.
	LoadErr string `json:"-" bson:"-"`
}

// BasicInfo holds publication identity fields.
type BasicInfo struct {
	PublicationName string `json:"publicationName" bson:"publicationName"`
	WebsiteURL      string `json:"websiteUrl,omitempty" bson:"websiteUrl,omitempty"`
}

// DistributionChannels lists the inventory channels of a publication.
// Channels other than newsletters are not interpreted here.
type DistributionChannels struct {
	Newsletters []Newsletter `json:"newsletters,omitempty" bson:"newsletters,omitempty"`
}

// Newsletter is one email product of a publication.
type Newsletter struct {
	Name                     string         `json:"name" bson:"name"`
	Frequency                string         `json:"frequency,omitempty" bson:"frequency,omitempty"`
	Subscribers              int            `json:"subscribers,omitempty" bson:"subscribers,omitempty"`
	AdvertisingOpportunities []NewsletterAd `json:"advertisingOpportunities,omitempty" bson:"advertisingOpportunities,omitempty"`
}

// NewsletterAd is an advertising opportunity inside a newsletter.
type NewsletterAd struct {
	Name     string `json:"name" bson:"name"`
	Position string `json:"position,omitempty" bson:"position,omitempty"`
	// Dimensions is the legacy free-text size. It is kept for display only and
	// never written by new code.
	Dimensions *string         `json:"dimensions,omitempty" bson:"dimensions,omitempty"`
	Format     *formats.Format `json:"format,omitempty" bson:"format,omitempty"`
	Pricing    *Pricing        `json:"pricing,omitempty" bson:"pricing,omitempty"`

	// Issue describes stored fields that could not be read and were dropped.
	Issue string `json:"-" bson:"-"`
}

// newsletterAdDoc mirrors NewsletterAd with the loosely typed fields raw.
type newsletterAdDoc struct {
	Name       string        `bson:"name"`
	Position   string        `bson:"position,omitempty"`
	Dimensions bson.RawValue `bson:"dimensions,omitempty"`
	Format     bson.RawValue `bson:"format,omitempty"`
	Pricing    bson.RawValue `bson:"pricing,omitempty"`
}

// UnmarshalBSON decodes an ad without failing on malformed size or pricing
// fields. A legacy list of strings is joined with ", "; any other unreadable
// value is dropped and described in Issue.
func (a *NewsletterAd) UnmarshalBSON(data []byte) error {
	var doc newsletterAdDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	*a = NewsletterAd{Name: doc.Name, Position: doc.Position}

	var issues []string
	dims, err := decodeLegacyDimensions(doc.Dimensions)
	if err != nil {
		issues = append(issues, "unreadable dimensions: "+err.Error())
	}
	a.Dimensions = dims

	if present(doc.Format) {
		var f formats.Format
		if err := doc.Format.Unmarshal(&f); err != nil {
			issues = append(issues, "unreadable format: "+err.Error())
		} else {
			a.Format = &f
		}
	}
	if present(doc.Pricing) {
		var p Pricing
		if err := doc.Pricing.Unmarshal(&p); err != nil {
			issues = append(issues, "unreadable pricing: "+err.Error())
		} else {
			a.Pricing = &p
		}
	}
	a.Issue = strings.Join(issues, "; ")
	return nil
}

func present(rv bson.RawValue) bool {
	return !rv.IsZero() && rv.Type != bsontype.Null && rv.Type != bsontype.Undefined
}

func decodeLegacyDimensions(rv bson.RawValue) (*string, error) {
	if !present(rv) {
		return nil, nil
	}
	switch rv.Type {
	case bsontype.String:
		s := rv.StringValue()
		return &s, nil
	case bsontype.Array:
		vals, err := rv.Array().Values()
		if err != nil {
			return nil, err
		}
		parts := make([]string, 0, len(vals))
		for _, v := range vals {
			s, ok := v.StringValueOK()
			if !ok {
				return nil, fmt.Errorf("list element of type %s", v.Type)
			}
			parts = append(parts, s)
		}
		joined := strings.Join(parts, ", ")
		return &joined, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", rv.Type)
	}
}

// Pricing is the flat rate card of an opportunity.
type Pricing struct {
	FlatRate     float64 `json:"flatRate,omitempty" bson:"flatRate,omitempty"`
	PricingModel string  `json:"pricingModel,omitempty" bson:"pricingModel,omitempty"`
}

// PositionDedicated marks a newsletter ad that owns the whole send.
const PositionDedicated = "dedicated"

// HasFormat reports whether the ad already carries the current format shape
// with at least one non-blank value.
func (a NewsletterAd) HasFormat() bool {
	if a.Format == nil {
		return false
	}
	for _, v := range formats.All(a.Format.Dimensions) {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// EffectiveDimensions returns the format dimensions, falling back to the
// legacy string. ok is false when neither is present.
func (a NewsletterAd) EffectiveDimensions() (formats.Dimensions, bool) {
	if a.HasFormat() {
		return a.Format.Dimensions, true
	}
	if a.Dimensions != nil && strings.TrimSpace(*a.Dimensions) != "" {
		return formats.Single(*a.Dimensions), true
	}
	return formats.Dimensions{}, false
}

// Name returns the publication display name.
func (p Publication) Name() string {
	return p.BasicInfo.PublicationName
}

// Ad returns a pointer to the ad at the given newsletter and ad index.
func (p *Publication) Ad(newsletter, ad int) (*NewsletterAd, error) {
	if newsletter < 0 || newsletter >= len(p.Channels.Newsletters) {
		return nil, ErrNotFound
	}
	ads := p.Channels.Newsletters[newsletter].AdvertisingOpportunities
	if ad < 0 || ad >= len(ads) {
		return nil, ErrNotFound
	}
	return &p.Channels.Newsletters[newsletter].AdvertisingOpportunities[ad], nil
}

// FormatChange sets (or, with a nil Format, clears) the format of a single
// newsletter ad addressed by its newsletter and ad index. When AdName is set
// the change only applies while the ad at that index still has that name.
type FormatChange struct {
	Newsletter int
	Ad         int
	AdName     string
	Format     *formats.Format
}

// Path returns the dotted document path of the changed format field.
func (c FormatChange) Path() string {
	return c.adPath() + ".format"
}

// NamePath returns the dotted document path of the addressed ad's name.
func (c FormatChange) NamePath() string {
	return c.adPath() + ".name"
}

func (c FormatChange) adPath() string {
	return fmt.Sprintf("distributionChannels.newsletters.%d.advertisingOpportunities.%d", c.Newsletter, c.Ad)
}
