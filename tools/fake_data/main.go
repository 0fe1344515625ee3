package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/config"
	"github.com/patrickwarner/mediahub/internal/db"
	"github.com/patrickwarner/mediahub/internal/formats"
	"github.com/patrickwarner/mediahub/internal/models"
	"github.com/patrickwarner/mediahub/internal/observability"
)

var (
	pubCount    = flag.Int("publications", 5, "number of random publications")
	nlPerPub    = flag.Int("newsletters", 2, "newsletters per publication")
	adsPerNL    = flag.Int("ads", 3, "ads per newsletter")
	migratedPct = flag.Int("migrated", 20, "percent of ads that already carry a format")
	seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	printOnly   = flag.Bool("print", false, "print the generated publications as JSON instead of inserting them")
)

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	r := rand.New(rand.NewSource(*seed))
	pubs := append([]models.Publication{demoPublication()}, randomPublications(r, *pubCount, *nlPerPub, *adsPerNL, *migratedPct)...)

	if *printOnly {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pubs); err != nil {
			logger.Fatal("encode publications", zap.Error(err))
		}
		return
	}

	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("load .env", zap.Error(err))
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.InitMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, cfg.MongoTimeout)
	if err != nil {
		logger.Fatal("connect mongo", zap.Error(err))
	}
	defer store.Close()

	if err := store.InsertPublications(ctx, pubs); err != nil {
		logger.Fatal("insert publications", zap.Error(err))
	}
	logger.Info("inserted publications",
		zap.Int("count", len(pubs)),
		zap.Int64("seed", *seed))
}

// legacyValues covers every migration outcome: table hits, pixel sizes,
// lists, keywords and values that need review.
var legacyValues = []string{
	"Full email",
	"Dedicated send",
	"Responsive",
	"Text only",
	"Sponsored content",
	"Logo + text",
	"Leaderboard",
	"Medium rectangle",
	"300x250",
	"728 x 90",
	"600X150",
	"300x250, 728x90",
	"600x150 or 600x200",
	"Full width takeover",
	"Native ad",
	"150 characters",
	"",
	"TBD",
	"Varies",
	"large",
}

var migratedValues = []formats.Dimensions{
	formats.Single("300x250"),
	formats.Single("600x150"),
	formats.Single(formats.LabelFullNewsletter),
	formats.Single(formats.LabelTextOnly),
	formats.Multiple("300x250", "336x280"),
}

var adNames = []string{"Top Banner", "Mid Banner", "Footer", "Sponsor Spot", "Classified", "Text Link", "Presenting Sponsor"}
var newsletterNames = []string{"Morning Brief", "Weekend Edition", "Breaking News", "Events", "Deals"}
var frequencies = []string{"daily", "weekly", "monthly"}

var nameAdjectives = []string{"Acme", "Prime", "Dynamic", "Next", "Fast", "Bright", "Super"}
var nameNouns = []string{"Media", "Times", "Gazette", "Herald", "Journal", "Weekly"}

func fakeName(r *rand.Rand) string {
	return fmt.Sprintf("%s %s", nameAdjectives[r.Intn(len(nameAdjectives))], nameNouns[r.Intn(len(nameNouns))])
}

var domainWords = []string{"alpha", "beta", "gamma", "delta", "omega", "news", "local"}
var domainTLDs = []string{"com", "net", "news", "org"}

func fakeDomain(r *rand.Rand) string {
	return fmt.Sprintf("https://%s%d.%s", domainWords[r.Intn(len(domainWords))], r.Intn(1000), domainTLDs[r.Intn(len(domainTLDs))])
}

func strPtr(s string) *string { return &s }

// demoPublication has one ad per interesting legacy case so a dry run shows
// every outcome.
func demoPublication() models.Publication {
	var ads []models.NewsletterAd
	for _, v := range legacyValues {
		ad := models.NewsletterAd{Name: "Demo " + v}
		if v != "" {
			ad.Dimensions = strPtr(v)
		} else {
			ad.Name = "Demo missing"
		}
		ads = append(ads, ad)
	}
	ads = append(ads,
		models.NewsletterAd{Name: "Demo dedicated", Position: models.PositionDedicated},
		models.NewsletterAd{Name: "Demo migrated", Dimensions: strPtr("Leaderboard"), Format: &formats.Format{Dimensions: formats.Single("728x90")}},
	)
	return models.Publication{
		ID:            primitive.NewObjectID(),
		PublicationID: 1,
		BasicInfo:     models.BasicInfo{PublicationName: "Demo Publication", WebsiteURL: "https://demo.example.com"},
		Channels: models.DistributionChannels{Newsletters: []models.Newsletter{{
			Name:                     "Demo Daily",
			Frequency:                "daily",
			Subscribers:              25000,
			AdvertisingOpportunities: ads,
		}}},
	}
}

func randomPublications(r *rand.Rand, n, newsletters, ads, migratedPct int) []models.Publication {
	out := make([]models.Publication, 0, n)
	for i := 0; i < n; i++ {
		pub := models.Publication{
			ID:            primitive.NewObjectID(),
			PublicationID: i + 2,
			BasicInfo:     models.BasicInfo{PublicationName: fakeName(r), WebsiteURL: fakeDomain(r)},
		}
		for j := 0; j < newsletters; j++ {
			nl := models.Newsletter{
				Name:        newsletterNames[r.Intn(len(newsletterNames))],
				Frequency:   frequencies[r.Intn(len(frequencies))],
				Subscribers: 1000 + r.Intn(100000),
			}
			for k := 0; k < ads; k++ {
				nl.AdvertisingOpportunities = append(nl.AdvertisingOpportunities, randomAd(r, migratedPct))
			}
			pub.Channels.Newsletters = append(pub.Channels.Newsletters, nl)
		}
		out = append(out, pub)
	}
	return out
}

func randomAd(r *rand.Rand, migratedPct int) models.NewsletterAd {
	ad := models.NewsletterAd{
		Name: adNames[r.Intn(len(adNames))],
		Pricing: &models.Pricing{
			FlatRate:     float64(50 + r.Intn(20)*25),
			PricingModel: "flat",
		},
	}
	if r.Intn(10) == 0 {
		ad.Position = models.PositionDedicated
	}
	if v := legacyValues[r.Intn(len(legacyValues))]; v != "" {
		ad.Dimensions = strPtr(v)
	}
	if r.Intn(100) < migratedPct {
		ad.Format = &formats.Format{Dimensions: migratedValues[r.Intn(len(migratedValues))]}
	}
	return ad
}
