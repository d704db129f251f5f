package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"homescore/internal/alerts"
	"homescore/internal/events"
	"homescore/internal/model"
)

var statuses = []model.Status{
	model.StatusSold, model.StatusSold, model.StatusSold, model.StatusPending,
	model.StatusActive, model.StatusActive, model.StatusComingSoon, model.StatusUnderContract,
}

var tags = []string{"waterfront", "open floor plan", "finished basement"}

func main() {
	var (
		listings     int
		clients      int
		perClient    int
		seed         int64
		lat, lon     float64
		listingsOut  string
		eventsOut    string
		kafkaBrokers string
		topic        string
	)
	flag.IntVar(&listings, "listings", 200, "number of listings to generate")
	flag.IntVar(&clients, "clients", 20, "number of clients")
	flag.IntVar(&perClient, "interactions", 15, "interactions per client")
	flag.Int64Var(&seed, "seed", 1, "random seed (same seed, same data)")
	flag.Float64Var(&lat, "lat", 39.95, "centre latitude")
	flag.Float64Var(&lon, "lon", -75.16, "centre longitude")
	flag.StringVar(&listingsOut, "listings-out", "listings.jsonl", "listings output file")
	flag.StringVar(&eventsOut, "interactions-out", "interactions.jsonl", "interaction events output file")
	flag.StringVar(&kafkaBrokers, "kafka-bootstrap", "", "also publish interaction events to kafka when set")
	flag.StringVar(&topic, "topic", "homescore.interactions", "interaction topic")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC().Truncate(time.Second)

	ls := generateListings(rng, listings, model.Point{Lat: lat, Lon: lon}, now)
	if err := writeJSONL(listingsOut, ls); err != nil {
		log.Fatalf("write listings: %v", err)
	}
	its := generateInteractions(rng, ls, clients, perClient, now)
	if err := writeEvents(eventsOut, its); err != nil {
		log.Fatalf("write interactions: %v", err)
	}
	log.Printf("generated %d listings to %s and %d interactions to %s", len(ls), listingsOut, len(its), eventsOut)

	if kafkaBrokers != "" {
		if err := publish(kafkaBrokers, topic, its); err != nil {
			log.Fatalf("publish interactions: %v", err)
		}
		log.Printf("published %d interactions to %s", len(its), topic)
	}
}

func generateListings(rng *rand.Rand, n int, centre model.Point, now time.Time) []model.Listing {
	out := make([]model.Listing, 0, n)
	for i := 0; i < n; i++ {
		beds := float64(1 + rng.Intn(5))
		baths := float64(1+rng.Intn(3)) + 0.5*float64(rng.Intn(2))
		sqft := 700 + int(beds)*350 + rng.Intn(600)
		lot := 2000 + rng.Intn(14000)
		year := 1920 + rng.Intn(105)
		dom := rng.Intn(120)
		walk := 20 + rng.Intn(80)
		price := int64(sqft)*int64(180+rng.Intn(140))*100 + int64(rng.Intn(40_000))*100
		listed := now.AddDate(0, 0, -dom)

		l := model.Listing{
			ID:           fmt.Sprintf("l%04d", i+1),
			Provider:     "gendata",
			ProviderID:   fmt.Sprintf("G-%d", 100000+i),
			Address:      fmt.Sprintf("%d %s St", 100+rng.Intn(900), streetNames[rng.Intn(len(streetNames))]),
			PostalCode:   fmt.Sprintf("191%02d", rng.Intn(50)),
			Status:       statuses[rng.Intn(len(statuses))],
			Beds:         &beds,
			Baths:        &baths,
			Sqft:         &sqft,
			LotSqft:      &lot,
			YearBuilt:    &year,
			DaysOnMarket: &dom,
			WalkScore:    &walk,
			Garage:       rng.Intn(2) == 0,
			Pool:         rng.Intn(6) == 0,
			ListedAt:     &listed,
			UpdatedAt:    now,
			Location: &model.Point{
				// roughly within two miles of the centre
				Lat: centre.Lat + (rng.Float64()-0.5)*0.058,
				Lon: centre.Lon + (rng.Float64()-0.5)*0.075,
			},
		}
		if rng.Intn(4) == 0 {
			l.Tags = append(l.Tags, tags[rng.Intn(len(tags))])
		}
		if rng.Intn(15) == 0 {
			l.Defects.Structural = true
		}
		if rng.Intn(20) == 0 {
			l.Defects.Mechanical = true
		}
		if l.Status == model.StatusSold {
			sold := now.AddDate(0, 0, -rng.Intn(240))
			l.SaleDate = &sold
			l.SalePriceCents = price
		} else {
			l.ListPriceCents = price
		}
		out = append(out, l)
	}
	return out
}

var streetNames = []string{"Pine", "Spruce", "Walnut", "Locust", "Chestnut", "Market", "Arch", "Race", "Vine", "Green"}

// generateInteractions gives each client a taste (big houses or small,
// pool or not) and samples signals consistent with it.
func generateInteractions(rng *rand.Rand, ls []model.Listing, clients, perClient int, now time.Time) []model.Interaction {
	var out []model.Interaction
	for c := 0; c < clients; c++ {
		clientID := fmt.Sprintf("client-%03d", c+1)
		wantsBig := rng.Intn(2) == 0
		wantsPool := rng.Intn(3) == 0
		for i := 0; i < perClient; i++ {
			l := ls[rng.Intn(len(ls))]
			big := l.Sqft != nil && *l.Sqft >= 1800
			match := big == wantsBig && (!wantsPool || l.Pool)
			it := model.Interaction{
				ClientID:  clientID,
				ListingID: l.ID,
				At:        now.Add(-time.Duration(rng.Intn(60*24)) * time.Hour),
			}
			switch {
			case match && rng.Intn(3) == 0:
				it.Action = model.ActionDwell
				it.DwellSeconds = float64(20 + rng.Intn(200))
			case match:
				it.Action = model.ActionLike
			case rng.Intn(2) == 0:
				it.Action = model.ActionDislike
			default:
				it.Action = model.ActionSkip
			}
			out = append(out, it)
		}
	}
	return out
}

func writeJSONL[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("encode row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeEvents(path string, its []model.Interaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	for _, it := range its {
		b, err := events.Encode(it)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func publish(bootstrap, topic string, its []model.Interaction) error {
	w := &kafka.Writer{
		Addr:         kafka.TCP(alerts.Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer w.Close()

	msgs := make([]kafka.Message, 0, len(its))
	for _, it := range its {
		b, err := events.Encode(it)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(it.ClientID), Value: b})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.WriteMessages(ctx, msgs...)
}
