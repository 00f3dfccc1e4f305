// Package script holds the raw migration script model as it arrives from the
// script document, before plan compilation. Everything here is plain data;
// compiled state lives in internal/plan.
package script

// OrgEntry is one connection target as named in the script. An empty access
// token means the org has not been authenticated yet.
type OrgEntry struct {
	Name        string `mapstructure:"name" json:"name"`
	InstanceURL string `mapstructure:"instanceUrl" json:"instanceUrl"`
	AccessToken string `mapstructure:"accessToken" json:"accessToken"`
}

// MockField is carried through for the execution engine; the compiler does
// not interpret it.
type MockField struct {
	Name    string `mapstructure:"name" json:"name"`
	Pattern string `mapstructure:"pattern" json:"pattern"`
}

// Object is one raw object entry from the script. The query text, not the
// Name label, is authoritative for entity identity.
type Object struct {
	Name                string      `mapstructure:"name" json:"name"`
	Query               string      `mapstructure:"query" json:"query"`
	DeleteQuery         string      `mapstructure:"deleteQuery" json:"deleteQuery"`
	Operation           Operation   `mapstructure:"operation" json:"operation"`
	ExternalID          string      `mapstructure:"externalId" json:"externalId"`
	Excluded            bool        `mapstructure:"excluded" json:"excluded"`
	AllRecords          bool        `mapstructure:"allRecords" json:"allRecords"`
	DeleteOldData       bool        `mapstructure:"deleteOldData" json:"deleteOldData"`
	UseCSVValuesMapping bool        `mapstructure:"useCSVValuesMapping" json:"useCSVValuesMapping"`
	UpdateWithMockData  bool        `mapstructure:"updateWithMockData" json:"updateWithMockData"`
	MockFields          []MockField `mapstructure:"mockFields" json:"mockFields"`
}

// Script is the deserialized migration script document.
type Script struct {
	Orgs    []OrgEntry `mapstructure:"orgs" json:"orgs"`
	Objects []*Object  `mapstructure:"objects" json:"objects"`

	PollingIntervalMs   int    `mapstructure:"pollingIntervalMs" json:"pollingIntervalMs"`
	BulkThreshold       int    `mapstructure:"bulkThreshold" json:"bulkThreshold"`
	BulkAPIVersion      string `mapstructure:"bulkApiVersion" json:"bulkApiVersion"`
	APIVersion          string `mapstructure:"apiVersion" json:"apiVersion"`
	AllowPartialSuccess bool   `mapstructure:"allowPartialSuccess" json:"allowPartialSuccess"`
	PromptOnError       bool   `mapstructure:"promptOnError" json:"promptOnError"`
	EncryptDataFiles    bool   `mapstructure:"encryptDataFiles" json:"encryptDataFiles"`
	ImportCSVFilesAsIs  bool   `mapstructure:"importCSVFilesAsIs" json:"importCSVFilesAsIs"`
}

// Org returns the org entry with the given name, or nil.
func (s *Script) Org(name string) *OrgEntry {
	for i := range s.Orgs {
		if s.Orgs[i].Name == name {
			return &s.Orgs[i]
		}
	}
	return nil
}
