package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultCheckInterval is used when a monitoring command names no interval
const DefaultCheckInterval = 30 * time.Second

// rule pairs a keyword pattern with a slot extractor. Rules are tried in
// declaration order and the first match wins, so more specific patterns
// must come before looser ones.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(m []string, raw string) Action
}

var rules = []rule{
	// Traffic routing, percentage forms first
	{
		name: "route_pct_from",
		re:   regexp.MustCompile(`^route (\d+)% (?:of )?traffic from (.+) to (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[2], m[3], m[1], raw)
		},
	},
	{
		name: "route_with_pct",
		re:   regexp.MustCompile(`^route (.+) to (.+) with (\d+)% traffic$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[1], m[2], m[3], raw)
		},
	},
	{
		name: "send_pct",
		re:   regexp.MustCompile(`^send (\d+)% of traffic from (.+) to (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[2], m[3], m[1], raw)
		},
	},
	{
		name: "balance_pct",
		re:   regexp.MustCompile(`^balance (\d+)% traffic from (.+) to (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[2], m[3], m[1], raw)
		},
	},
	{
		name: "redirect_at_pct",
		re:   regexp.MustCompile(`^redirect (.+) to (.+) at (\d+)%$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[1], m[2], m[3], raw)
		},
	},
	// Full redirects and failover move everything
	{
		name: "failover",
		re:   regexp.MustCompile(`^failover (.+) to (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[1], m[2], "100", raw)
		},
	},
	{
		name: "redirect",
		re:   regexp.MustCompile(`^redirect (.+) to (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[1], m[2], "100", raw)
		},
	},
	{
		name: "balance_between",
		re:   regexp.MustCompile(`^balance traffic between (.+) and (.+)$`),
		build: func(m []string, raw string) Action {
			return buildRoute(m[1], m[2], "50", raw)
		},
	},

	// Health monitoring
	{
		name: "check_health_every",
		re:   regexp.MustCompile(`^check health of (.+) every (\d+) ?(seconds?|secs?|minutes?|mins?)?$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], m[2], m[3], raw)
		},
	},
	{
		name: "monitor_health_every",
		re:   regexp.MustCompile(`^monitor (.+) health every (\d+) ?(seconds?|secs?|minutes?|mins?)?$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], m[2], m[3], raw)
		},
	},
	{
		name: "health_check_interval",
		re:   regexp.MustCompile(`^health check (.+) interval (\d+)$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], m[2], "", raw)
		},
	},
	{
		name: "ping_every",
		re:   regexp.MustCompile(`^ping (.+) every (\d+) ?(seconds?|secs?|minutes?|mins?)?$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], m[2], m[3], raw)
		},
	},
	{
		name: "watch_health",
		re:   regexp.MustCompile(`^watch (.+) health$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], "", "", raw)
		},
	},

	// Auto-scaling
	{
		name: "scale_up_above",
		re:   regexp.MustCompile(`^scale up when ([a-z]+) (?:is )?above (\d+)%?$`),
		build: func(m []string, raw string) Action {
			return buildScale(m[1], "above", m[2], raw)
		},
	},
	{
		name: "scale_down_below",
		re:   regexp.MustCompile(`^scale down when ([a-z]+) (?:is )?below (\d+)%?$`),
		build: func(m []string, raw string) Action {
			return buildScale(m[1], "below", m[2], raw)
		},
	},
	{
		name: "increase_capacity",
		re:   regexp.MustCompile(`^increase capacity when ([a-z]+) (?:is )?above (\d+)%?$`),
		build: func(m []string, raw string) Action {
			return buildScale(m[1], "above", m[2], raw)
		},
	},
	{
		name: "decrease_capacity",
		re:   regexp.MustCompile(`^decrease capacity when ([a-z]+) (?:is )?below (\d+)%?$`),
		build: func(m []string, raw string) Action {
			return buildScale(m[1], "below", m[2], raw)
		},
	},
	{
		name: "scale_threshold",
		re:   regexp.MustCompile(`^scale when ([a-z]+) threshold (\d+)%?$`),
		build: func(m []string, raw string) Action {
			return buildScale(m[1], "above", m[2], raw)
		},
	},

	// Status queries, global forms before targeted ones
	{
		name: "status_global",
		re:   regexp.MustCompile(`^(?:show status|system status|overall health|dashboard|summary|status)$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{}
		},
	},
	{
		name: "status_of",
		re:   regexp.MustCompile(`^status of (.+)$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{Target: strings.TrimSpace(m[1])}
		},
	},
	{
		name: "show_health_of",
		re:   regexp.MustCompile(`^show health of (.+)$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{Target: strings.TrimSpace(m[1])}
		},
	},
	{
		name: "check_status",
		re:   regexp.MustCompile(`^check (.+) status$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{Target: strings.TrimSpace(m[1])}
		},
	},
	{
		name: "how_is_doing",
		re:   regexp.MustCompile(`^how is (.+) doing\??$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{Target: strings.TrimSpace(m[1])}
		},
	},
	{
		name: "health_report",
		re:   regexp.MustCompile(`^health report for (.+)$`),
		build: func(m []string, raw string) Action {
			return StatusQuery{Target: strings.TrimSpace(m[1])}
		},
	},

	{
		name: "help",
		re:   regexp.MustCompile(`^help$`),
		build: func(m []string, raw string) Action {
			return Help{}
		},
	},

	// Loosest monitoring form last so it cannot shadow anything above
	{
		name: "monitor_bare",
		re:   regexp.MustCompile(`^monitor (.+)$`),
		build: func(m []string, raw string) Action {
			return buildHealthCheck(m[1], "", "", raw)
		},
	},
}

// Parse interprets free-form text as an Action. It never fails: input
// that no rule accepts, or that fails slot validation, yields Unrecognized.
func Parse(text string) Action {
	normalized := normalize(text)
	if normalized == "" {
		return Unrecognized{Raw: text, Reason: "empty command"}
	}

	for _, r := range rules {
		if m := r.re.FindStringSubmatch(normalized); m != nil {
			return r.build(m, text)
		}
	}

	return Unrecognized{Raw: text, Reason: "no matching command pattern"}
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

func buildRoute(source, destination, percent, raw string) Action {
	p, err := strconv.Atoi(percent)
	if err != nil || p < 0 || p > 100 {
		return Unrecognized{Raw: raw, Reason: "percentage must be between 0 and 100"}
	}

	src := strings.TrimSpace(source)
	dst := strings.TrimSpace(destination)
	if src == "" || dst == "" {
		return Unrecognized{Raw: raw, Reason: "missing source or destination"}
	}
	if src == dst {
		return Unrecognized{Raw: raw, Reason: "source and destination must differ"}
	}

	return RouteTraffic{Source: src, Destination: dst, Fraction: float64(p) / 100}
}

func buildHealthCheck(target, value, unit, raw string) Action {
	name := strings.TrimSpace(target)
	if name == "" {
		return Unrecognized{Raw: raw, Reason: "missing target"}
	}

	interval := DefaultCheckInterval
	if value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return Unrecognized{Raw: raw, Reason: "interval must be a positive number"}
		}
		interval = time.Duration(n) * time.Second
		if strings.HasPrefix(unit, "min") || strings.HasPrefix(unit, "minute") {
			interval = time.Duration(n) * time.Minute
		}
	}

	return HealthCheck{Target: name, Interval: interval}
}

func buildScale(metric, comparator, threshold, raw string) Action {
	v, err := strconv.ParseFloat(threshold, 64)
	if err != nil || v < 0 {
		return Unrecognized{Raw: raw, Reason: "threshold must be a non-negative number"}
	}

	return ScaleTrigger{Metric: metric, Comparator: comparator, Threshold: v}
}

// HelpText lists the supported grammar, one form per line
func HelpText() string {
	return strings.Join([]string{
		"route <N>% traffic from <source> to <destination>",
		"send <N>% of traffic from <source> to <destination>",
		"redirect <source> to <destination> [at <N>%]",
		"failover <source> to <destination>",
		"balance traffic between <a> and <b>",
		"check health of <target> every <N> seconds|minutes",
		"monitor <target> [health every <N> seconds]",
		"ping <target> every <N> seconds",
		"scale up when <metric> above <N>",
		"scale down when <metric> below <N>",
		"status of <target>",
		"show status",
		"help",
	}, "\n")
}
