// Package profile implements the liveprof profiling commands.
//
//	liveprof demo [flags]       run a built-in workload under the profiler
//	liveprof show <file>        print a stored or pprof profile
//	liveprof backends           list the backends usable in this process
//
// Profile data goes to stdout; progress and logs go to stderr.
package profile
