package format

// Levels are the log4net level labels, in severity order.
var Levels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Builtin returns the default log4net layout:
//
//	2023-12-04 01:12:30,690 INFO  [ctx] [7] Program.cs, Main <App> - Started
func Builtin() *Spec {
	spec, err := New(Document{
		Title: "Log4Net",
		Syntax: []Step{
			{Kind: "begin"},
			{Kind: "skip", Count: 23},
			{Kind: "emit_date", Name: "Time", Width: 23},
			{Kind: "skip", Count: 1},
			{Kind: "begin"},
			{Kind: "skip_until_char", Char: " "},
			{Kind: "emit_enumeration", Name: "Level", Width: 5, Variants: Levels},
			{Kind: "skip_until_char", Char: "["},
			{Kind: "skip", Count: 1},
			{Kind: "begin"},
			{Kind: "skip_until_char", Char: "]"},
			{Kind: "emit_string", Name: "Context", Width: 10},
			{Kind: "skip_until_char", Char: "["},
			{Kind: "skip", Count: 1},
			{Kind: "begin"},
			{Kind: "skip_until_char", Char: "]"},
			{Kind: "emit_string", Name: "Thread", Width: 5},
			{Kind: "skip", Count: 2},
			{Kind: "begin"},
			{Kind: "skip_until_char", Char: ","},
			{Kind: "emit_string", Name: "File", Width: 30},
			{Kind: "skip", Count: 2},
			{Kind: "begin"},
			{Kind: "skip_until_string", String: " <"},
			{Kind: "emit_string", Name: "Method", Width: 10},
			{Kind: "skip", Count: 2},
			{Kind: "begin"},
			{Kind: "skip_until_char", Char: ">"},
			{Kind: "emit_string", Name: "Object", Width: 5},
			{Kind: "skip_until_string", String: " - "},
			{Kind: "skip", Count: 3},
			{Kind: "begin"},
			{Kind: "emit_remainder", Name: "Message", Width: -1},
		},
	})
	if err != nil {
		panic("format: invalid builtin format: " + err.Error())
	}
	return spec
}
