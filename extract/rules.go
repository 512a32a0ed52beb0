package extract

import (
	"regexp"
	"strings"

	"wa_ingest/models"
)

// rule maps a keyword to an outcome. Tables of rules are scanned in
// declaration order and the first match wins, so a keyword that contains
// another one must come before it.
type rule[T any] struct {
	keyword string
	outcome T
	match   func(text string) bool
}

func keyword[T any](kw string, outcome T) rule[T] {
	return rule[T]{
		keyword: kw,
		outcome: outcome,
		match:   func(text string) bool { return strings.Contains(text, kw) },
	}
}

// keywordNotBefore matches kw only where the next rune is not one of
// forbidden ("ارض" must not fire on "ارضي", ground floor).
func keywordNotBefore[T any](kw string, outcome T, forbidden string) rule[T] {
	return rule[T]{
		keyword: kw,
		outcome: outcome,
		match: func(text string) bool {
			for rest := text; ; {
				i := strings.Index(rest, kw)
				if i < 0 {
					return false
				}
				rest = rest[i+len(kw):]
				if next := firstRune(rest); next == 0 || !strings.ContainsRune(forbidden, next) {
					return true
				}
			}
		},
	}
}

func firstMatch[T any](rules []rule[T], text string) (T, bool) {
	for _, r := range rules {
		if r.match(text) {
			return r.outcome, true
		}
	}
	var zero T
	return zero, false
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

// System and administrative lines the export mixes in with real messages.
var systemMarkers = []string{
	"end-to-end encrypted",
	"created this group",
	"added you",
	"image omitted",
}

// Buyer questions ("how much", "the price") carry no listing on their own.
var priceInquiryMarkers = []string{
	"السعر",
	"بكام",
}

var propertyTypeRules = []rule[models.PropertyType]{
	keyword("شقه", models.PropertyTypeApartment),
	keyword("شقة", models.PropertyTypeApartment),
	keyword("قطعه ارض", models.PropertyTypeLand),
	keyword("قطعة ارض", models.PropertyTypeLand),
	keywordNotBefore("ارض", models.PropertyTypeLand, "يى"),
	keywordNotBefore("أرض", models.PropertyTypeLand, "يى"),
	keyword("بيت", models.PropertyTypeHouse),
	keyword("فيلا", models.PropertyTypeVilla),
	keyword("مخزن", models.PropertyTypeWarehouse),
	keyword("مكتب", models.PropertyTypeOffice),
	keyword("محل", models.PropertyTypeShop),
	keyword("تجاري", models.PropertyTypeCommercial),
}

// sold/rented phrases contain the bare sale/rent keywords and go first
var transactionTypeRules = []rule[models.TransactionType]{
	keyword("تم البيع", models.TransactionSold),
	keyword("تم الايجار", models.TransactionRented),
	keyword("تم الإيجار", models.TransactionRented),
	keyword("للبيع", models.TransactionForSale),
	keyword("بيع", models.TransactionForSale),
	keyword("موجود", models.TransactionForSale),
	keyword("موجوده", models.TransactionForSale),
	keyword("للايجار", models.TransactionForRent),
	keyword("للإيجار", models.TransactionForRent),
	keyword("ايجار", models.TransactionForRent),
	keyword("إيجار", models.TransactionForRent),
	keyword("مطلوب", models.TransactionWanted),
}

// most specific first: "تشطيب سوبر لوكس" before "سوبر لوكس" before "لوكس"
var finishingRules = []rule[string]{
	keyword("تشطيب سوبر لوكس", "تشطيب سوبر لوكس"),
	keyword("سوبر لوكس", "سوبر لوكس"),
	keyword("لوكس", "لوكس"),
	keyword("نص تشطيب", "نص تشطيب"),
	keyword("متشطبه", "متشطبه"),
	keyword("متشطب", "متشطب"),
	keyword("على الطوب", "على الطوب"),
	keyword("عظم", "عظم"),
}

// every matching phrase is collected
var featurePhrases = []string{
	"متقفله حديد",
	"متقفلة حديد",
	"ناصيه",
	"ناصية",
	"واجهه بحري",
	"واجهة بحري",
	"واجهه بحريه",
	"بحري",
	"أمامي",
	"امامي",
	"خلفي",
	"داخلي",
	"على السرفيس",
	"بجوار الخدمات",
	"قريب من الخدمات",
	"توكيل",
	"ملف كامل",
	"عقد اخضر",
	"رخصه",
	"رخصة",
	"خالصه",
	"خالصة",
	"مفروش",
	"مفروشة",
}

// numericPattern is one independent "keyword number" field
type numericPattern struct {
	name  string
	regex *regexp.Regexp
	bits  int // column width; 32 when zero
	set   func(d *models.ExtractedPropertyData, n int)
}

func (p *numericPattern) bitSize() int {
	if p.bits == 0 {
		return 32
	}
	return p.bits
}

func initNumericPatterns() []*numericPattern {
	return []*numericPattern{
		{
			name:  "area_number",
			regex: regexp.MustCompile(`(?:الحي|حي|الحى|حى)\s*(\d+)`),
			set:   func(d *models.ExtractedPropertyData, n int) { d.AreaNumber = &n },
		},
		{
			name:  "neighborhood_number",
			regex: regexp.MustCompile(`(?:مجاوره|مجاورة|المجاوره|المجاورة|مج)\s*(\d+)`),
			set:   func(d *models.ExtractedPropertyData, n int) { d.NeighborhoodNumber = &n },
		},
		{
			name:  "area",
			regex: regexp.MustCompile(`(?:مساحه|مساحة)\s*(\d+)\s*(?:م|متر)`),
			set:   func(d *models.ExtractedPropertyData, n int) { d.Area = &n },
		},
		{
			name:  "installment",
			regex: regexp.MustCompile(`(?:قسط|قسطها)\s*(\d+)`),
			bits:  64,
			set: func(d *models.ExtractedPropertyData, n int) {
				v := int64(n)
				d.InstallmentAmount = &v
			},
		},
		{
			name:  "years_paid",
			regex: regexp.MustCompile(`(?:دافع|مدفوع)\s*(\d+)\s*(?:سن|عام)`),
			set:   func(d *models.ExtractedPropertyData, n int) { d.YearsPaid = &n },
		},
		{
			name:  "years_remaining",
			regex: regexp.MustCompile(`(?:باقي|متبقي)\s*(\d+)\s*(?:سن|عام)`),
			set:   func(d *models.ExtractedPropertyData, n int) { d.YearsRemaining = &n },
		},
	}
}

var (
	floorRegex = regexp.MustCompile(`(?:دور|الدور)\s*(\d+|ارضي|أرضي|اول|ثاني|ثالث|رابع|خامس|سادس|سابع|ثامن|تاسع|عاشر)`)
	priceRegex = regexp.MustCompile(`(?:سعر|مطلوب)\s*(\d+(?:\.\d+)?)\s*(?:مليون|ألف|الف|جنيه|جم)`)
	unitRegex  = regexp.MustCompile(`مليون|ألف|الف`)
	digitRegex = regexp.MustCompile(`\d`)
)

var floorWords = map[string]int{
	"ارضي":  0,
	"أرضي":  0,
	"اول":   1,
	"ثاني":  2,
	"ثالث":  3,
	"رابع":  4,
	"خامس":  5,
	"سادس":  6,
	"سابع":  7,
	"ثامن":  8,
	"تاسع":  9,
	"عاشر":  10,
}

var unitMultipliers = map[string]float64{
	"مليون": 1_000_000,
	"ألف":   1_000,
	"الف":   1_000,
}

// Arabic-Indic and extended (Persian) digits fold to ASCII before any
// numeric pattern runs.
var digitFolder = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)
