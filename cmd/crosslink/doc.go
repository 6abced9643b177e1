// Command crosslink resolves watch-list titles against a secondary catalog,
// keeps the resulting link cache warm, and serves it over HTTP.
//
// Commands:
//
//	warm      bulk-resolve every tracked title, then cache referenced people
//	sync      run one time-boxed refresh (priority titles first, then stale)
//	resolve   run the resolver for a single title without touching the cache
//	link      inspect cached links or re-link a title by hand
//	track     search TMDB and maintain the watch list the engine reads
//	serve     expose the cron trigger, read path and metrics over HTTP
//	status    check directories, the link store and catalog reachability
//	config    create or inspect the configuration file
package main
