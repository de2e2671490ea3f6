package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/pagination"
)

var teamColumns = []string{"t.id", "t.type", "t.username", "t.password", "t.queue_name", "t.created_at", "t.updated_at"}

const (
	teamSortColumn = "t.username"

	// Request totals and the passed indicator only count banks that are active.
	totalRequestsExpr = "SUM(CASE WHEN b.active THEN COALESCE(s.request_count, 0) ELSE 0 END)"
	passedExpr        = "MIN(CASE WHEN b.active AND COALESCE(s.request_count, 0) > 0 THEN 1 ELSE 0 END)"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// teamSelect is the query under construction.
type teamSelect struct {
	columns []string
	joins   []string
	where   []string
	having  []string
	args    []interface{}
	order   pagination.Direction
	limit   string
}

func (s *teamSelect) bind(v interface{}) string {
	s.args = append(s.args, v)
	return fmt.Sprintf("$%d", len(s.args))
}

func (s *teamSelect) sql() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.columns, ", "))
	b.WriteString(" FROM teams t")
	for _, join := range s.joins {
		b.WriteString(" ")
		b.WriteString(join)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	// The statistics join fans out rows per active bank, grouping folds them back to one row per team.
	if len(s.joins) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(teamColumns, ", "))
	}
	if len(s.having) > 0 {
		b.WriteString(" HAVING ")
		b.WriteString(strings.Join(s.having, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", teamSortColumn, s.order)
	if s.limit != "" {
		b.WriteString(" LIMIT ")
		b.WriteString(s.limit)
	}
	return b.String()
}

// teamTransform shapes a query. A transformer returns nil when its filter is absent.
type teamTransform func(*teamSelect)

type teamTransformer func(models.TeamQuery) teamTransform

// Order matters only for the numbering of bind parameters.
var teamTransformers = []teamTransformer{
	matchUsername,
	matchQueueName,
	filterType,
	filterPassword,
	filterStudents,
	filterBanks,
	joinStatistics,
	aggregateTotalRequests,
	filterMinRequests,
	filterMaxRequests,
	aggregatePassed,
}

// composeTeamQuery renders the page query for q past boundary b, returning at most limit rows.
func composeTeamQuery(q models.TeamQuery, b pagination.Boundary, limit int) (string, []interface{}) {
	s := &teamSelect{columns: append([]string(nil), teamColumns...)}
	withBoundary(b)(s)
	for _, transformer := range teamTransformers {
		if transform := transformer(q); transform != nil {
			transform(s)
		}
	}
	withLimit(b.Order, limit)(s)
	return s.sql(), s.args
}

func withBoundary(b pagination.Boundary) teamTransform {
	return func(s *teamSelect) {
		s.where = append(s.where, fmt.Sprintf("%s %s %s", teamSortColumn, b.Operator, s.bind(b.Value)))
	}
}

func withLimit(order pagination.Direction, limit int) teamTransform {
	return func(s *teamSelect) {
		s.order = order
		s.limit = s.bind(limit)
	}
}

func containsPattern(v *string) string {
	if v == nil {
		return "%%"
	}
	return "%" + likeEscaper.Replace(*v) + "%"
}

func matchUsername(q models.TeamQuery) teamTransform {
	return func(s *teamSelect) {
		s.where = append(s.where, "t.username ILIKE "+s.bind(containsPattern(q.Username)))
	}
}

func matchQueueName(q models.TeamQuery) teamTransform {
	return func(s *teamSelect) {
		s.where = append(s.where, "t.queue_name ILIKE "+s.bind(containsPattern(q.QueueName)))
	}
}

func equals(column string, v *string) teamTransform {
	if v == nil {
		return nil
	}
	return func(s *teamSelect) {
		s.where = append(s.where, column+" = "+s.bind(*v))
	}
}

func filterType(q models.TeamQuery) teamTransform {
	return equals("t.type", q.Type)
}

// filterPassword compares digests so the plain value never travels inside a cursor.
func filterPassword(q models.TeamQuery) teamTransform {
	return equals("encode(sha256(convert_to(t.password, 'UTF8')), 'hex')", q.PasswordSHA256())
}

// filterStudents keeps teams with at least one student matching every given name. A semi-join keeps
// student rows out of the grouped statistics.
func filterStudents(q models.TeamQuery) teamTransform {
	if !q.FiltersStudents() {
		return nil
	}
	return func(s *teamSelect) {
		conds := []string{"st.team_id = t.id"}
		if q.StudentFirstName != nil {
			conds = append(conds, "st.first_name = "+s.bind(*q.StudentFirstName))
		}
		if q.StudentLastName != nil {
			conds = append(conds, "st.last_name = "+s.bind(*q.StudentLastName))
		}
		s.where = append(s.where, "EXISTS (SELECT 1 FROM students st WHERE "+strings.Join(conds, " AND ")+")")
	}
}

// filterBanks keeps teams holding a statistic for any listed bank. It never narrows the joined
// rows, so aggregates still cover every active bank.
func filterBanks(q models.TeamQuery) teamTransform {
	if len(q.Banks) == 0 {
		return nil
	}
	return func(s *teamSelect) {
		terms := make([]string, 0, len(q.Banks))
		for _, bank := range q.Banks {
			terms = append(terms, "sb.bank_name = "+s.bind(bank))
		}
		s.where = append(s.where, "EXISTS (SELECT 1 FROM statistics sb WHERE sb.team_id = t.id AND ("+strings.Join(terms, " OR ")+"))")
	}
}

// joinStatistics yields one row per active bank for each team, the only fan-out the grouping folds.
func joinStatistics(q models.TeamQuery) teamTransform {
	if !q.AggregatesStatistics() {
		return nil
	}
	return func(s *teamSelect) {
		s.joins = append(s.joins,
			"LEFT JOIN banks b ON b.active = TRUE",
			"LEFT JOIN statistics s ON s.team_id = t.id AND s.bank_name = b.name",
		)
	}
}

func aggregateTotalRequests(q models.TeamQuery) teamTransform {
	if q.MinRequests == nil && q.MaxRequests == nil {
		return nil
	}
	return func(s *teamSelect) {
		s.columns = append(s.columns, totalRequestsExpr+" AS total_requests")
	}
}

func filterMinRequests(q models.TeamQuery) teamTransform {
	if q.MinRequests == nil {
		return nil
	}
	return func(s *teamSelect) {
		s.having = append(s.having, totalRequestsExpr+" >= "+s.bind(*q.MinRequests))
	}
}

func filterMaxRequests(q models.TeamQuery) teamTransform {
	if q.MaxRequests == nil {
		return nil
	}
	return func(s *teamSelect) {
		s.having = append(s.having, totalRequestsExpr+" <= "+s.bind(*q.MaxRequests))
	}
}

func aggregatePassed(q models.TeamQuery) teamTransform {
	if q.Passed == nil {
		return nil
	}
	flag := 0
	if *q.Passed {
		flag = 1
	}
	return func(s *teamSelect) {
		s.columns = append(s.columns, passedExpr+" AS passed")
		s.having = append(s.having, passedExpr+" = "+s.bind(flag))
	}
}
