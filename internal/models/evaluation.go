package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Column names referenced directly by the engine.
const (
	ColUserID                = "USER_ID"
	ColYear                  = "YEAR"
	ColEvaluation            = "EVALUATION"
	ColEmailAddress          = "EMAIL_ADDRESS"
	ColDirectManagerEmail    = "DIRECT_MANAGER_EMAIL"
	ColFullName              = "FULL_NAME"
	ColIsLocked              = "IS_LOCKED"
	ColVykon                 = "VYKON"
	ColHodnoty               = "HODNOTY"
	ColPotencial             = "POTENCIAL"
	ColPravdepodobnostOdchod = "PRAVDEPODOBNOST_ODCHODU"
	ColNastupce              = "NASTUPCE"
	ColMoznyKarierniPosun    = "MOZNY_KARIERNI_POSUN"
	ColPoznamky              = "POZNAMKY"
	ColLockedTimestamp       = "LOCKED_TIMESTAMP"
	ColModifiedWhen          = "HIST_DATA_MODIFIED_WHEN"
	ColModifiedBy            = "HIST_DATA_MODIFIED_BY"
	ColYearEvaluation        = "YEAR_EVALUATION"
)

// PrimaryKeyColumns identify a record.
var PrimaryKeyColumns = []string{ColUserID, ColYear, ColEvaluation}

// EditableColumns are the evaluator-facing fields a grid user may change.
var EditableColumns = []string{ColVykon, ColHodnoty, ColPotencial, ColMoznyKarierniPosun, ColPravdepodobnostOdchod, ColNastupce, ColPoznamky}

// UpdateColumns are written back to the warehouse on save.
var UpdateColumns = []string{
	ColHodnoty, ColVykon, ColPotencial, ColPoznamky, ColNastupce, ColPravdepodobnostOdchod,
	ColIsLocked, ColMoznyKarierniPosun, ColLockedTimestamp, ColModifiedBy, ColModifiedWhen,
}

// AuditColumns are written by the engine and never compared between renders.
var AuditColumns = []string{ColModifiedBy, ColModifiedWhen, ColLockedTimestamp}

// EvaluationKey is the immutable primary key of an evaluation row. It
// encodes to JSON as "USER_ID|YEAR|EVALUATION".
type EvaluationKey struct {
	UserID     string
	Year       int
	Evaluation int
}

func (k EvaluationKey) String() string {
	return fmt.Sprintf("%s|%d|%d", k.UserID, k.Year, k.Evaluation)
}

// ParseEvaluationKey reverses EvaluationKey.String.
func ParseEvaluationKey(raw string) (EvaluationKey, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return EvaluationKey{}, fmt.Errorf("invalid evaluation key %q", raw)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return EvaluationKey{}, fmt.Errorf("invalid year in key %q", raw)
	}
	round, err := strconv.Atoi(parts[2])
	if err != nil {
		return EvaluationKey{}, fmt.Errorf("invalid evaluation in key %q", raw)
	}
	return EvaluationKey{UserID: strings.TrimSpace(parts[0]), Year: year, Evaluation: round}, nil
}

// MarshalText lets keys be used as JSON object keys.
func (k EvaluationKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a key rendered by MarshalText.
func (k *EvaluationKey) UnmarshalText(text []byte) error {
	parsed, err := ParseEvaluationKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EvaluationRecord is one row of the evaluation warehouse table.
type EvaluationRecord struct {
	UserID                   string    `db:"USER_ID" json:"USER_ID"`
	Year                     int       `db:"YEAR" json:"YEAR"`
	Evaluation               int       `db:"EVALUATION" json:"EVALUATION"`
	Login                    string    `db:"LOGIN" json:"LOGIN"`
	EmailAddress             string    `db:"EMAIL_ADDRESS" json:"EMAIL_ADDRESS"`
	DirectManagerEmail       string    `db:"DIRECT_MANAGER_EMAIL" json:"DIRECT_MANAGER_EMAIL"`
	FullName                 string    `db:"FULL_NAME" json:"FULL_NAME"`
	JobTitleCZ               string    `db:"JOB_TITLE_CZ" json:"JOB_TITLE_CZ"`
	DirectManagerFullName    string    `db:"DIRECT_MANAGER_FULL_NAME" json:"DIRECT_MANAGER_FULL_NAME"`
	LastEvaluation           string    `db:"LAST_EVALUATION" json:"LAST_EVALUATION"`
	VykonPrevious            int       `db:"VYKON_PREVIOUS" json:"VYKON_PREVIOUS"`
	HodnotyPrevious          int       `db:"HODNOTY_PREVIOUS" json:"HODNOTY_PREVIOUS"`
	PotencialPrevious        string    `db:"POTENCIAL_PREVIOUS" json:"POTENCIAL_PREVIOUS"`
	VykonSystem              int       `db:"VYKON_SYSTEM" json:"VYKON_SYSTEM"`
	HodnotySystem            int       `db:"HODNOTY_SYSTEM" json:"HODNOTY_SYSTEM"`
	IsLocked                 int       `db:"IS_LOCKED" json:"IS_LOCKED"`
	Vykon                    int       `db:"VYKON" json:"VYKON"`
	Hodnoty                  int       `db:"HODNOTY" json:"HODNOTY"`
	Potencial                string    `db:"POTENCIAL" json:"POTENCIAL"`
	PravdepodobnostOdchodu   string    `db:"PRAVDEPODOBNOST_ODCHODU" json:"PRAVDEPODOBNOST_ODCHODU"`
	Nastupce                 string    `db:"NASTUPCE" json:"NASTUPCE"`
	MoznyKarierniPosun       string    `db:"MOZNY_KARIERNI_POSUN" json:"MOZNY_KARIERNI_POSUN"`
	Poznamky                 string    `db:"POZNAMKY" json:"POZNAMKY"`
	LockedTimestamp          Timestamp `db:"LOCKED_TIMESTAMP" json:"LOCKED_TIMESTAMP"`
	HistDataModifiedWhen     Timestamp `db:"HIST_DATA_MODIFIED_WHEN" json:"HIST_DATA_MODIFIED_WHEN"`
	HistDataModifiedBy       string    `db:"HIST_DATA_MODIFIED_BY" json:"HIST_DATA_MODIFIED_BY"`
	JobEntryDate             Timestamp `db:"JOB_ENTRY_DATE" json:"JOB_ENTRY_DATE"`
	TMDate                   Timestamp `db:"TM_DATE" json:"TM_DATE"`
	L2OrganizationUnitNameCZ string    `db:"L2_ORGANIZATION_UNIT_NAME_CZ" json:"L2_ORGANIZATION_UNIT_NAME_CZ"`
	L3OrganizationUnitNameCZ string    `db:"L3_ORGANIZATION_UNIT_NAME_CZ" json:"L3_ORGANIZATION_UNIT_NAME_CZ"`
	L4OrganizationUnitNameCZ string    `db:"L4_ORGANIZATION_UNIT_NAME_CZ" json:"L4_ORGANIZATION_UNIT_NAME_CZ"`
	TeamCode                 string    `db:"TEAM_CODE" json:"TEAM_CODE"`
	L2HeadOfUnitFullName     string    `db:"L2_HEAD_OF_UNIT_FULL_NAME" json:"L2_HEAD_OF_UNIT_FULL_NAME"`
	L3HeadOfUnitFullName     string    `db:"L3_HEAD_OF_UNIT_FULL_NAME" json:"L3_HEAD_OF_UNIT_FULL_NAME"`
	L4HeadOfUnitFullName     string    `db:"L4_HEAD_OF_UNIT_FULL_NAME" json:"L4_HEAD_OF_UNIT_FULL_NAME"`
	MesDppStatus             string    `db:"MES_DPP_STATUS" json:"MES_DPP_STATUS"`
}

// Key returns the record's primary key.
func (r EvaluationRecord) Key() EvaluationKey {
	return EvaluationKey{UserID: strings.TrimSpace(r.UserID), Year: r.Year, Evaluation: r.Evaluation}
}

// YearEvaluation is the derived period label "{YEAR}-{EVALUATION}".
func (r EvaluationRecord) YearEvaluation() string {
	return fmt.Sprintf("%d-%d", r.Year, r.Evaluation)
}

// Locked reports whether the lock flag is set.
func (r EvaluationRecord) Locked() bool {
	return r.IsLocked == 1
}

// Normalize lower-cases the hierarchy emails and trims the user id.
func (r *EvaluationRecord) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.EmailAddress = NormalizeEmail(r.EmailAddress)
	r.DirectManagerEmail = NormalizeEmail(r.DirectManagerEmail)
}

// EvaluationDataset is the ordered, session-scoped copy of the warehouse table.
type EvaluationDataset struct {
	Records []EvaluationRecord `json:"records"`
	index   map[EvaluationKey]int
}

// NewEvaluationDataset normalises records and indexes them by key. Later
// duplicates of a key replace earlier ones.
func NewEvaluationDataset(records []EvaluationRecord) *EvaluationDataset {
	ds := &EvaluationDataset{Records: make([]EvaluationRecord, 0, len(records))}
	ds.index = make(map[EvaluationKey]int, len(records))
	for _, rec := range records {
		rec.Normalize()
		if pos, ok := ds.index[rec.Key()]; ok {
			ds.Records[pos] = rec
			continue
		}
		ds.index[rec.Key()] = len(ds.Records)
		ds.Records = append(ds.Records, rec)
	}
	return ds
}

// Get looks a record up by key.
func (ds *EvaluationDataset) Get(key EvaluationKey) (EvaluationRecord, bool) {
	if ds == nil {
		return EvaluationRecord{}, false
	}
	if ds.index == nil {
		ds.reindex()
	}
	pos, ok := ds.index[key]
	if !ok {
		return EvaluationRecord{}, false
	}
	return ds.Records[pos], true
}

// Len returns the number of records.
func (ds *EvaluationDataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.Records)
}

// Periods returns the distinct YEAR_EVALUATION labels, newest first.
func (ds *EvaluationDataset) Periods() []string {
	if ds == nil {
		return nil
	}
	type period struct{ year, round int }
	seen := make(map[period]struct{})
	list := make([]period, 0)
	for _, rec := range ds.Records {
		p := period{rec.Year, rec.Evaluation}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].year != list[j].year {
			return list[i].year > list[j].year
		}
		return list[i].round > list[j].round
	})
	labels := make([]string, len(list))
	for i, p := range list {
		labels[i] = fmt.Sprintf("%d-%d", p.year, p.round)
	}
	return labels
}

func (ds *EvaluationDataset) reindex() {
	ds.index = make(map[EvaluationKey]int, len(ds.Records))
	for i, rec := range ds.Records {
		ds.index[rec.Key()] = i
	}
}
