package websocket

// AllJobs is the subscription key for clients watching every job
const AllJobs = "all"
