// Package model defines the core data types shared across the screening pipeline.
package model

// ContractRecord is one procurement notice retained after ingestion filtering.
// OCID is the dedup key: a record with a repeated OCID is never stored twice.
type ContractRecord struct {
	OCID          string `json:"ocid" csv:"ocid"`
	Title         string `json:"title" csv:"title"`
	Description   string `json:"description" csv:"description"`
	CPVCode       string `json:"cpv_code" csv:"cpv_code"`
	ValueAmount   string `json:"value_amount" csv:"value_amount"`
	Currency      string `json:"currency" csv:"currency"`
	PublishedDate string `json:"published_date" csv:"published_date"`
	BuyerName     string `json:"buyer_name" csv:"buyer_name"`
	BuyerNameRaw  string `json:"buyer_name_raw,omitempty" csv:"buyer_name_raw"`
	BuyerCountry  string `json:"buyer_country" csv:"buyer_country"`
	TenderStatus  string `json:"tender_status" csv:"tender_status"`
	Source        string `json:"source" csv:"source"`
}

// UnknownCPV is the sentinel for a missing or unclassifiable CPV code.
// Records carrying it are rejected at ingestion time.
const UnknownCPV = "UNKNOWN"

// BuyerMapping is one row of the canonical buyer-map artifact: a raw buyer
// name and the canonical representative chosen for its cluster. The map is
// regenerated in full on every clean run.
type BuyerMapping struct {
	Raw       string `json:"buyer_name_raw" csv:"buyer_name_raw"`
	Canonical string `json:"buyer_name_canonical" csv:"buyer_name_canonical"`
}

// BuyerCluster groups raw buyer-name variants sharing a normalization key.
type BuyerCluster struct {
	Key       string   `json:"key"`
	Variants  []string `json:"variants"`
	Canonical string   `json:"canonical"`
}
