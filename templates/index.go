package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"buyside-ai/models"
)

type labels struct {
	Title, Analyze, AnalyzeHint, Compare, Tickers, Start, End string
	Period, Mode, ChartType, Chat, ChatHint, Send, Download   string
}

var pageLabels = map[models.Language]labels{
	models.LanguageEnglish: {
		Title:       "BuySide AI Financial Analysis",
		Analyze:     "Analyze",
		AnalyzeHint: "Company names or tickers, comma separated",
		Compare:     "Compare",
		Tickers:     "Tickers",
		Start:       "Start date",
		End:         "End date",
		Period:      "Period",
		Mode:        "Mode",
		ChartType:   "Chart",
		Chat:        "Ask the agent",
		ChatHint:    "What are the risks of investing in these stocks?",
		Send:        "Send",
		Download:    "Download PDF report",
	},
	models.LanguageHebrew: {
		Title:       "ניתוח פיננסי BuySide AI",
		Analyze:     "נתח",
		AnalyzeHint: "שמות חברות או סימולים, מופרדים בפסיקים",
		Compare:     "השווה",
		Tickers:     "סימולים",
		Start:       "תאריך התחלה",
		End:         "תאריך סיום",
		Period:      "תקופה",
		Mode:        "מצב",
		ChartType:   "גרף",
		Chat:        "שאל את הסוכן",
		ChatHint:    "מהם הסיכונים בהשקעה במניות אלו?",
		Send:        "שלח",
		Download:    "הורד דוח PDF",
	},
}

// Index renders the single page UI in lang
func Index(lang models.Language) templ.Component {
	l, ok := pageLabels[lang]
	if !ok {
		lang = models.LanguageEnglish
		l = pageLabels[lang]
	}
	dir := "ltr"
	if lang.IsRTL() {
		dir = "rtl"
	}
	e := templ.EscapeString[string]

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			`<!DOCTYPE html><html lang="`, e(string(lang)), `" dir="`, dir, `"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, e(l.Title), `</title><style>`, style, `</style></head><body data-lang="`, e(string(lang)), `">`,
			`<h1>`, e(l.Title), `</h1>`,

			`<section><h2>`, e(l.Analyze), `</h2><form id="analyze-form">`,
			`<input name="input" placeholder="`, e(l.AnalyzeHint), `" required>`,
			`<button type="submit">`, e(l.Analyze), `</button></form></section>`,

			`<section><h2>`, e(l.Compare), `</h2><form id="compare-form">`,
			`<label>`, e(l.Tickers), ` <input name="tickers" placeholder="SPY, QQQ" required></label>`,
			`<label>`, e(l.Start), ` <input type="date" name="start" required></label>`,
			`<label>`, e(l.End), ` <input type="date" name="end" required></label>`,
			`<label>`, e(l.Period), ` <select name="period"><option>Cumulative</option><option>Monthly</option><option>Quarterly</option><option>Yearly</option></select></label>`,
			`<label>`, e(l.Mode), ` <select name="mode"><option value="normalized">Normalized</option><option value="return">Return</option></select></label>`,
			`<label>`, e(l.ChartType), ` <select name="chart_type"><option>Line</option><option>Bar</option></select></label>`,
			`<button type="submit">`, e(l.Compare), `</button></form></section>`,

			`<section id="result" hidden><div id="metrics"></div><img id="chart" alt=""><div id="narrative"></div>`,
			`<a id="report" href="#">`, e(l.Download), `</a></section>`,

			`<section><h2>`, e(l.Chat), `</h2><form id="chat-form">`,
			`<input name="prompt" placeholder="`, e(l.ChatHint), `" required>`,
			`<button type="submit">`, e(l.Send), `</button></form><div id="chat"></div></section>`,

			`<script>`, script, `</script></body></html>`,
		}
		for _, p := range parts {
			if _, err := io.WriteString(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}

const style = `body{font-family:sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}
section{margin-bottom:2rem}label{display:inline-block;margin:.25rem .5rem}
table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem;text-align:right}
.error{color:#b00}img{max-width:100%}`

const script = `const lang = document.body.dataset.lang;
const show = (id, html) => { document.getElementById(id).innerHTML = html; };
const esc = s => String(s ?? "").replace(/[&<>"]/g, c => ({"&":"&amp;","<":"&lt;",">":"&gt;",'"':"&quot;"}[c]));
async function post(url, body) {
  const res = await fetch(url, {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify(body)});
  const data = await res.json();
  if (!res.ok) throw new Error(data.error);
  return data;
}
function render(r, chartQuery) {
  const cols = ["ticker","cumulative_return_pct","mean_daily_return_pct","std_deviation_pct","variance","max_drawdown_pct","dividend_yield_pct","expense_ratio_pct"];
  const head = "<tr>" + cols.map(c => "<th>" + c + "</th>").join("") + "</tr>";
  const rows = r.metrics.rows.map(m => "<tr>" + cols.map(c => "<td>" + esc(m[c]) + "</td>").join("") + "</tr>").join("");
  show("metrics", "<table>" + head + rows + "</table>");
  show("narrative", r.narrative_html || '<p class="error">' + esc(r.narrative.reason) + "</p>");
  document.getElementById("chart").src = "/api/results/" + r.id + "/chart.png" + chartQuery;
  document.getElementById("report").href = "/api/results/" + r.id + "/report.pdf" + chartQuery;
  document.getElementById("result").hidden = false;
}
function fail(err) {
  document.getElementById("result").hidden = false;
  show("metrics", '<p class="error">' + esc(err.message) + "</p>");
  show("narrative", "");
}
document.getElementById("analyze-form").onsubmit = e => {
  e.preventDefault();
  post("/api/analyze", {input: e.target.input.value, language: lang}).then(r => render(r, "")).catch(fail);
};
document.getElementById("compare-form").onsubmit = e => {
  e.preventDefault();
  const f = e.target;
  const chart = {period: f.period.value, mode: f.mode.value, chart_type: f.chart_type.value};
  const body = Object.assign({tickers: f.tickers.value.split(","), start: f.start.value, end: f.end.value, language: lang}, chart);
  post("/api/compare", body).then(r => render(r, "?" + new URLSearchParams(chart))).catch(fail);
};
document.getElementById("chat-form").onsubmit = e => {
  e.preventDefault();
  post("/api/chat", {prompt: e.target.prompt.value, language: lang})
    .then(r => show("chat", r.html || '<p class="error">' + esc(r.narrative.reason) + "</p>"))
    .catch(err => show("chat", '<p class="error">' + esc(err.message) + "</p>"));
};`
