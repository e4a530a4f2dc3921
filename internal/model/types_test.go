package model

import (
	"reflect"
	"testing"
)

func TestParseMarket(t *testing.T) {
	tests := []struct {
		in      string
		want    Market
		wantErr bool
	}{
		{"上市", MarketListed, false},
		{"上櫃", MarketOTC, false},
		{"listed", MarketListed, false},
		{"OTC", MarketOTC, false},
		{" tpex ", MarketOTC, false},
		{"興櫃", MarketUnknown, true},
		{"", MarketUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseMarket(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMarket(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMarket(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMarketLabels(t *testing.T) {
	if MarketListed.Tag() != "上市" {
		t.Errorf("MarketListed.Tag() = %q", MarketListed.Tag())
	}
	if MarketOTC.Tag() != "上櫃" {
		t.Errorf("MarketOTC.Tag() = %q", MarketOTC.Tag())
	}
	if MarketUnknown.Tag() != "" {
		t.Errorf("MarketUnknown.Tag() = %q, want empty", MarketUnknown.Tag())
	}
	if MarketOTC.String() != "otc" {
		t.Errorf("MarketOTC.String() = %q", MarketOTC.String())
	}
}

func TestCanonicalRecord(t *testing.T) {
	r := CanonicalRecord{
		Code:         "2330",
		Name:         "TSMC",
		Market:       MarketListed,
		Date:         "20240602",
		Volume:       "10000",
		Turnover:     "1500000",
		Open:         "100",
		High:         "105",
		Low:          "99",
		Close:        "102",
		Change:       "2",
		Transactions: "500",
	}

	t.Run("Key", func(t *testing.T) {
		want := FileKey{Code: "2330", Market: MarketListed, YearMonth: "202406"}
		if got := r.Key(); got != want {
			t.Errorf("Key() = %+v, want %+v", got, want)
		}
	})

	t.Run("Row", func(t *testing.T) {
		want := []string{"2330", "TSMC", "20240602", "10000", "1500000", "100", "105", "99", "102", "2", "500"}
		if got := r.Row(); !reflect.DeepEqual(got, want) {
			t.Errorf("Row() = %v, want %v", got, want)
		}
	})

	t.Run("different months map to different keys", func(t *testing.T) {
		other := r
		other.Date = "20240701"
		if r.Key() == other.Key() {
			t.Error("records from different months share a FileKey")
		}
	})
}

func TestYearMonth(t *testing.T) {
	if got := YearMonth("20240105"); got != "202401" {
		t.Errorf("YearMonth = %q, want %q", got, "202401")
	}
	if got := YearMonth("2024"); got != "2024" {
		t.Errorf("YearMonth short = %q, want %q", got, "2024")
	}
}

func TestInstrumentSubject(t *testing.T) {
	i := Instrument{Code: "2330", Name: "台積電", Market: MarketListed}
	if got := i.Subject(); got != "2330_台積電" {
		t.Errorf("Subject() = %q", got)
	}
}
