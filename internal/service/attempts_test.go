package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sam-arojo/Protrust/internal/model"
)

func TestAttemptLoggerEnrichesLocation(t *testing.T) {
	db := setupTestDB(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","country":"Nigeria","regionName":"Lagos","city":"Ikeja"}`))
	}))
	defer srv.Close()

	geo := NewGeoResolver(srv.URL+"/", time.Second, nil, time.Hour, 0)
	logger := NewAttemptLogger(db, geo)

	logger.Log(context.Background(), AttemptRecord{
		CodeValue: "ABCDEFGHJKLM",
		Result:    model.ResultNotFound,
		Meta:      VerifyMeta{SourceIP: "203.0.113.20", UserAgent: "scanner/1.0", Method: "qr"},
	})

	var attempt model.VerificationAttempt
	if err := db.First(&attempt).Error; err != nil {
		t.Fatal(err)
	}
	if attempt.Country == nil || *attempt.Country != "Nigeria" {
		t.Errorf("country not enriched: %v", attempt.Country)
	}
	if attempt.City == nil || *attempt.City != "Ikeja" {
		t.Errorf("city not enriched: %v", attempt.City)
	}
	if attempt.UserAgent == nil || *attempt.UserAgent != "scanner/1.0" {
		t.Errorf("user agent not recorded: %v", attempt.UserAgent)
	}
}

func TestAttemptLoggerSkipsPrivateAddressEnrichment(t *testing.T) {
	db := setupTestDB(t)
	geo := NewGeoResolver("http://invalid.invalid/", time.Second, nil, time.Hour, 0)
	logger := NewAttemptLogger(db, geo)

	logger.Log(context.Background(), AttemptRecord{
		CodeValue: "ABCDEFGHJKLM",
		Result:    model.ResultNotFound,
		Meta:      VerifyMeta{SourceIP: "192.168.0.10", Method: "manual"},
	})

	var attempt model.VerificationAttempt
	if err := db.First(&attempt).Error; err != nil {
		t.Fatal(err)
	}
	if attempt.City != nil || attempt.Region != nil || attempt.Country != nil {
		t.Error("location columns should stay unset for private addresses")
	}
}

func TestAttemptLoggerAsyncMode(t *testing.T) {
	db := setupTestDB(t)
	logger := NewAttemptLogger(db, nil)
	logger.Start(16)

	for i := 0; i < 5; i++ {
		logger.Log(context.Background(), AttemptRecord{
			CodeValue: "ABCDEFGHJKLM",
			Result:    model.ResultDuplicate,
			Meta:      VerifyMeta{SourceIP: "203.0.113.21", Method: "qr"},
		})
	}

	// The writer drains on its own goroutine; poll briefly for the rows.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var count int64
		db.Model(&model.VerificationAttempt{}).Count(&count)
		if count == 5 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 5 attempts written before deadline", count)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
